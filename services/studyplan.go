package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"studypulse/models"
	"studypulse/utils"
)

// behindThreshold and the day-date assignment rule live on the model; this
// service owns plan lifecycle mutations and collaborator calls.
type StudyPlanService struct {
	DB          *gorm.DB
	Planner     Planner
	Email       EmailService
	Logger      *log.Logger
	FrontendURL string
}

func NewStudyPlanService(db *gorm.DB, planner Planner, email EmailService, logger *log.Logger, frontendURL string) *StudyPlanService {
	return &StudyPlanService{
		DB:          db,
		Planner:     planner,
		Email:       email,
		Logger:      logger,
		FrontendURL: frontendURL,
	}
}

// ReplanSnapshot summarizes progress at the moment of an adaptive replan.
type ReplanSnapshot struct {
	DaysRemaining int `json:"daysRemaining"`
	Completed     int `json:"completed"`
	Total         int `json:"total"`
}

func (s *StudyPlanService) planQuery(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Days", func(db *gorm.DB) *gorm.DB { return db.Order("plan_days.day ASC") }).
		Preload("Days.Topics").
		Preload("Collaborators")
}

func (s *StudyPlanService) loadPlan(planID uint) (*models.StudyPlan, error) {
	var plan models.StudyPlan
	err := s.planQuery(s.DB).First(&plan, planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Study plan")
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreatePlan generates and persists a new active plan for the course.
// Day 1 is the creation day; day N lands N-1 days later. Rejected when the
// exam date is not in the future or an active plan already exists.
func (s *StudyPlanService) CreatePlan(ctx context.Context, userID, courseID uint, examDate time.Time, hoursPerDay float64, studentLevel string) (*models.StudyPlan, error) {
	now := time.Now()
	if !examDate.After(now) {
		return nil, utils.NewValidationError("Exam date must be in the future")
	}
	if hoursPerDay <= 0 {
		hoursPerDay = 4
	}
	if studentLevel == "" {
		studentLevel = "intermediate"
	}

	var course models.Course
	err := s.DB.Preload("Syllabus").First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Course")
	}
	if err != nil {
		return nil, err
	}
	if course.UserID != userID {
		return nil, utils.NewAuthorizationError("Unauthorized")
	}

	var existing models.StudyPlan
	err = s.DB.Where("user_id = ? AND course_id = ? AND status = ?",
		userID, courseID, models.PlanStatusActive).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("Active study plan already exists for this course", existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	dependencies, err := s.Planner.GenerateDependencies(ctx, course.Name, course.SyllabusTopicNames())
	if err != nil {
		return nil, err
	}

	generated, err := s.Planner.GeneratePlan(ctx, &course, examDate, studentLevel, hoursPerDay)
	if err != nil {
		return nil, err
	}

	today := utils.StartOfDay(now)
	days := make([]models.PlanDay, 0, len(generated.DailySchedule))
	for index, dayPlan := range generated.DailySchedule {
		topics := make([]models.PlanTopic, 0, len(dayPlan.Topics))
		for _, t := range dayPlan.Topics {
			topics = append(topics, models.PlanTopic{
				Name:            t.Name,
				HoursAllocated:  t.HoursAllocated,
				Difficulty:      t.Difficulty,
				GoalDescription: t.GoalDescription,
			})
		}

		reviewTopics, err := json.Marshal(dayPlan.ReviewTopics)
		if err != nil {
			return nil, err
		}

		days = append(days, models.PlanDay{
			Day:          index + 1,
			Date:         today.AddDate(0, 0, index),
			TotalHours:   dayPlan.TotalHours,
			ReviewTopics: reviewTopics,
			Topics:       topics,
		})
	}

	dependenciesJSON, err := json.Marshal(dependencies)
	if err != nil {
		return nil, err
	}
	tipsJSON, err := json.Marshal(generated.StudyTips)
	if err != nil {
		return nil, err
	}

	plan := &models.StudyPlan{
		UserID:       userID,
		CourseID:     courseID,
		ExamDate:     examDate,
		Status:       models.PlanStatusActive,
		TotalDays:    utils.DaysUntil(today, examDate),
		HoursPerDay:  hoursPerDay,
		StudentLevel: studentLevel,
		Dependencies: dependenciesJSON,
		StudyTips:    tipsJSON,
		ExamStrategy: generated.ExamStrategy,
		Days:         days,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-check inside the transaction so two concurrent creates cannot
		// both insert an active plan.
		var count int64
		if err := tx.Model(&models.StudyPlan{}).
			Where("user_id = ? AND course_id = ? AND status = ?",
				userID, courseID, models.PlanStatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewConflictError("Active study plan already exists for this course", existing)
		}
		return tx.Create(plan).Error
	})
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// GetActivePlan returns the owner's active plan for the course.
func (s *StudyPlanService) GetActivePlan(userID, courseID uint) (*models.StudyPlan, error) {
	var plan models.StudyPlan
	err := s.planQuery(s.DB).Preload("Course").
		Where("user_id = ? AND course_id = ? AND status = ?",
			userID, courseID, models.PlanStatusActive).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Active study plan")
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CompleteTopic marks one topic done inside a transaction. The topic update
// is a single-row write scoped by topic id, so concurrent completions of
// different topics in the same day never clobber each other. Returns the
// refreshed plan and whether the supplied rating flags the topic for review.
func (s *StudyPlanService) CompleteTopic(ctx context.Context, planID, userID uint, day int, topicName string, confidence *int, note string) (*models.StudyPlan, bool, error) {
	if confidence != nil && (*confidence < 1 || *confidence > 5) {
		return nil, false, utils.NewValidationError("Confidence must be between 1 and 5")
	}

	now := time.Now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var plan models.StudyPlan
		err := s.planQuery(tx).First(&plan, planID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("Study plan")
		}
		if err != nil {
			return err
		}

		// Collaborators get append rights to completion state; anyone else
		// is rejected.
		if !plan.CanView(userID) {
			return utils.NewAuthorizationError("Unauthorized")
		}
		if plan.Status != models.PlanStatusActive {
			return utils.NewValidationError("Study plan is not active")
		}

		daySchedule := plan.FindDay(day)
		if daySchedule == nil {
			return utils.NewNotFoundError("Day")
		}
		topic := daySchedule.FindTopic(topicName)
		if topic == nil {
			return utils.NewNotFoundError("Topic")
		}

		updates := map[string]interface{}{
			"completed":    true,
			"completed_at": now,
		}
		if confidence != nil {
			updates["confidence"] = *confidence
		}
		if err := tx.Model(&models.PlanTopic{}).
			Where("id = ?", topic.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		// Day rollup: done iff no topic in the day remains incomplete.
		var remaining int64
		if err := tx.Model(&models.PlanTopic{}).
			Where("plan_day_id = ? AND completed = ? AND id <> ?", daySchedule.ID, false, topic.ID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PlanDay{}).
			Where("id = ?", daySchedule.ID).
			Update("completed", remaining == 0).Error; err != nil {
			return err
		}

		// Plan rollup: all topics done closes the plan.
		var planRemaining int64
		if err := tx.Model(&models.PlanTopic{}).
			Joins("JOIN plan_days ON plan_days.id = plan_topics.plan_day_id").
			Where("plan_days.study_plan_id = ? AND plan_topics.completed = ? AND plan_topics.id <> ?",
				plan.ID, false, topic.ID).
			Count(&planRemaining).Error; err != nil {
			return err
		}
		if planRemaining == 0 && plan.Status.CanTransitionTo(models.PlanStatusCompleted) {
			if err := tx.Model(&models.StudyPlan{}).
				Where("id = ?", plan.ID).
				Update("status", models.PlanStatusCompleted).Error; err != nil {
				return err
			}
		}

		if confidence != nil {
			if err := s.recordConfidence(tx, &plan, topicName, *confidence, note, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, false, err
	}

	needsReview := confidence != nil && *confidence < 3
	return plan, needsReview, nil
}

func (s *StudyPlanService) recordConfidence(tx *gorm.DB, plan *models.StudyPlan, topicName string, score int, note string, now time.Time) error {
	var record models.ConfidenceTracking
	err := tx.Where("user_id = ? AND course_id = ? AND topic = ?",
		plan.UserID, plan.CourseID, topicName).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.ConfidenceTracking{
			UserID:      plan.UserID,
			CourseID:    plan.CourseID,
			StudyPlanID: &plan.ID,
			Topic:       topicName,
		}
	} else if err != nil {
		return err
	}

	if err := record.AddRating(score, note, "after_learning", now); err != nil {
		return err
	}
	return tx.Save(&record).Error
}

// AdaptiveReplan collects the full-plan progress snapshot, asks the planner
// for new prioritization, and stamps the replan audit trail. The service
// never reallocates topics itself.
func (s *StudyPlanService) AdaptiveReplan(ctx context.Context, planID, userID uint) (*AdaptivePlan, *ReplanSnapshot, error) {
	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, nil, err
	}
	if !plan.IsOwner(userID) {
		return nil, nil, utils.NewAuthorizationError("Unauthorized")
	}

	now := time.Now()
	daysRemaining := utils.DaysUntil(now, plan.ExamDate)
	if daysRemaining <= 0 {
		return nil, nil, utils.NewValidationError("Exam has already passed")
	}

	var progress []TopicProgress
	completed := 0
	for i := range plan.Days {
		for j := range plan.Days[i].Topics {
			topic := &plan.Days[i].Topics[j]
			confidence := 0
			if topic.Confidence != nil {
				confidence = *topic.Confidence
			}
			progress = append(progress, TopicProgress{
				Topic:      topic.Name,
				Completed:  topic.Completed,
				Confidence: confidence,
			})
			if topic.Completed {
				completed++
			}
		}
	}

	suggestions, err := s.Planner.SuggestAdaptivePlan(ctx, progress, daysRemaining)
	if err != nil {
		return nil, nil, err
	}

	if err := s.DB.Model(plan).Updates(map[string]interface{}{
		"last_replanned": now,
		"replan_count":   gorm.Expr("replan_count + 1"),
	}).Error; err != nil {
		return nil, nil, err
	}

	snapshot := &ReplanSnapshot{
		DaysRemaining: daysRemaining,
		Completed:     completed,
		Total:         len(progress),
	}
	return suggestions, snapshot, nil
}

// ReviewScheduleForPlan asks the spaced-repetition collaborator for a
// review schedule over the plan's completed topics. No completions means an
// empty schedule without an upstream call.
func (s *StudyPlanService) ReviewScheduleForPlan(ctx context.Context, planID, userID uint) (*ReviewScheduleResult, error) {
	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, err
	}
	if !plan.CanView(userID) {
		return nil, utils.NewAuthorizationError("Unauthorized")
	}

	var learned []LearnedTopic
	for i := range plan.Days {
		for j := range plan.Days[i].Topics {
			topic := &plan.Days[i].Topics[j]
			if !topic.Completed {
				continue
			}
			learnedDate := plan.Days[i].Date
			if topic.CompletedAt != nil {
				learnedDate = *topic.CompletedAt
			}
			learned = append(learned, LearnedTopic{
				Name:        topic.Name,
				LearnedDate: utils.DayKey(learnedDate),
			})
		}
	}

	if len(learned) == 0 {
		return &ReviewScheduleResult{ReviewSchedule: []ReviewSession{}}, nil
	}

	return s.Planner.ReviewSchedule(ctx, learned, plan.ExamDate)
}

// ConfidenceReport returns all confidence records for the course plus the
// low-confidence subset (current score under 3), weakest first.
func (s *StudyPlanService) ConfidenceReport(userID, courseID uint) ([]models.ConfidenceTracking, []models.ConfidenceTracking, error) {
	var all []models.ConfidenceTracking
	if err := s.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("current_confidence ASC").
		Find(&all).Error; err != nil {
		return nil, nil, err
	}

	low := make([]models.ConfidenceTracking, 0)
	for _, record := range all {
		if record.CurrentConfidence < 3 {
			low = append(low, record)
		}
	}
	return all, low, nil
}

// AddCollaborator grants another user read/append access to the plan.
// Owner-only; self-addition and duplicates are rejected. The invitation
// email is fire-and-forget.
func (s *StudyPlanService) AddCollaborator(planID, ownerID uint, email string) (*models.StudyPlan, error) {
	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsOwner(ownerID) {
		return nil, utils.NewAuthorizationError("Only the owner can add collaborators")
	}

	var collaborator models.User
	err = s.DB.Where("email = ?", email).First(&collaborator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("User with this email")
	}
	if err != nil {
		return nil, err
	}

	if collaborator.ID == ownerID {
		return nil, utils.NewValidationError("You cannot add yourself as a collaborator")
	}
	if plan.HasCollaborator(collaborator.ID) {
		return nil, utils.NewValidationError("User is already a collaborator")
	}

	if err := s.DB.Model(plan).Association("Collaborators").Append(&collaborator); err != nil {
		return nil, err
	}

	var owner models.User
	if err := s.DB.First(&owner, ownerID).Error; err == nil {
		planLink := s.FrontendURL + "/exam-prep"
		go func(toEmail, inviterName, link string) {
			if err := s.Email.SendInvitation(toEmail, inviterName, link); err != nil && s.Logger != nil {
				s.Logger.Printf("failed to send invitation email to %s: %v", toEmail, err)
			}
		}(collaborator.Email, owner.Name, planLink)
	}

	return s.loadPlan(planID)
}

// LatestActivePlan returns the most recently updated active plan the user
// owns or collaborates on.
func (s *StudyPlanService) LatestActivePlan(userID uint) (*models.StudyPlan, error) {
	var plan models.StudyPlan
	err := s.planQuery(s.DB).Preload("Course").
		Where("status = ?", models.PlanStatusActive).
		Where("user_id = ? OR id IN (?)", userID,
			s.DB.Table("study_plan_collaborators").
				Select("study_plan_id").
				Where("user_id = ?", userID)).
		Order("updated_at DESC").
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Active plan")
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// AbandonPlan is the explicit active -> abandoned transition.
func (s *StudyPlanService) AbandonPlan(planID, userID uint) (*models.StudyPlan, error) {
	plan, err := s.loadPlan(planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsOwner(userID) {
		return nil, utils.NewAuthorizationError("Unauthorized")
	}
	if !plan.Status.CanTransitionTo(models.PlanStatusAbandoned) {
		return nil, utils.NewValidationError("Cannot abandon a %s plan", plan.Status)
	}

	if err := s.DB.Model(plan).Update("status", models.PlanStatusAbandoned).Error; err != nil {
		return nil, err
	}
	return s.loadPlan(planID)
}
