package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studypulse/models"
	"studypulse/utils"
)

// stubPlanner returns canned collaborator output so tests never reach the
// network.
type stubPlanner struct {
	plan          *GeneratedPlan
	adaptive      *AdaptivePlan
	review        *ReviewScheduleResult
	err           error
	reviewCalled  bool
	generateCalls int
}

func (s *stubPlanner) GeneratePlan(ctx context.Context, course *models.Course, examDate time.Time, studentLevel string, hoursPerDay float64) (*GeneratedPlan, error) {
	s.generateCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func (s *stubPlanner) GenerateDependencies(ctx context.Context, courseName string, topics []string) (map[string]TopicDependency, error) {
	deps := make(map[string]TopicDependency, len(topics))
	for _, topic := range topics {
		deps[topic] = TopicDependency{Difficulty: "intermediate", EstimatedHours: 4, Description: topic}
	}
	return deps, nil
}

func (s *stubPlanner) SuggestAdaptivePlan(ctx context.Context, progress []TopicProgress, daysRemaining int) (*AdaptivePlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.adaptive, nil
}

func (s *stubPlanner) ReviewSchedule(ctx context.Context, learned []LearnedTopic, examDate time.Time) (*ReviewScheduleResult, error) {
	s.reviewCalled = true
	if s.err != nil {
		return nil, s.err
	}
	return s.review, nil
}

func twoDayPlan() *GeneratedPlan {
	return &GeneratedPlan{
		DailySchedule: []GeneratedDay{
			{
				Day: 1,
				Topics: []GeneratedTopic{
					{Name: "Limits", HoursAllocated: 2, Difficulty: "beginner"},
					{Name: "Derivatives", HoursAllocated: 2, Difficulty: "intermediate"},
				},
				TotalHours: 4,
			},
			{
				Day: 2,
				Topics: []GeneratedTopic{
					{Name: "Integrals", HoursAllocated: 2, Difficulty: "intermediate"},
					{Name: "Series", HoursAllocated: 2, Difficulty: "advanced"},
				},
				ReviewTopics: []string{"Limits"},
				TotalHours:   4,
			},
		},
		StudyTips:    []string{"Practice daily"},
		ExamStrategy: "Revise weak topics first",
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.SyllabusTopic{},
		&models.Task{},
		&models.StudyPlan{},
		&models.PlanDay{},
		&models.PlanTopic{},
		&models.ConfidenceTracking{},
	))
	return db
}

func newPlanService(t *testing.T, planner Planner) (*StudyPlanService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	email := NewConsoleEmailService(log.New(io.Discard, "", 0))
	svc := NewStudyPlanService(db, planner, email, log.New(io.Discard, "", 0), "http://localhost:3000")
	return svc, db
}

func seedUserAndCourse(t *testing.T, db *gorm.DB) (models.User, models.Course) {
	t.Helper()
	user := models.User{Name: "Asel", Email: "asel@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	course := models.Course{
		UserID: user.ID,
		Name:   "Calculus",
		Code:   "MATH101",
		Syllabus: []models.SyllabusTopic{
			{Topic: "Limits"},
			{Topic: "Derivatives"},
			{Topic: "Integrals"},
			{Topic: "Series"},
		},
	}
	require.NoError(t, db.Create(&course).Error)
	return user, course
}

func TestCreatePlan(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	examDate := time.Now().AddDate(0, 0, 5)
	plan, err := svc.CreatePlan(context.Background(), user.ID, course.ID, examDate, 4, "intermediate")
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusActive, plan.Status)
	require.Len(t, plan.Days, 2)
	assert.Equal(t, 1, plan.Days[0].Day)
	assert.Equal(t, utils.DayKey(time.Now()), utils.DayKey(plan.Days[0].Date))
	assert.Equal(t, utils.DayKey(time.Now().AddDate(0, 0, 1)), utils.DayKey(plan.Days[1].Date))
	assert.Equal(t, 4, plan.TotalTopics())
	assert.NotEmpty(t, plan.Dependencies)
	assert.Equal(t, "Revise weak topics first", plan.ExamStrategy)
	assert.False(t, plan.IsBehindSchedule(time.Now()), "fresh plan is never behind")
}

func TestCreatePlanRejectsPastExamDate(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	_, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, -1), 4, "")
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 0, stub.generateCalls)
}

func TestCreatePlanConflict(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	examDate := time.Now().AddDate(0, 0, 5)
	_, err := svc.CreatePlan(context.Background(), user.ID, course.ID, examDate, 4, "")
	require.NoError(t, err)

	_, err = svc.CreatePlan(context.Background(), user.ID, course.ID, examDate, 4, "")
	var conflictErr *utils.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	var count int64
	require.NoError(t, db.Model(&models.StudyPlan{}).
		Where("user_id = ? AND course_id = ? AND status = ?", user.ID, course.ID, models.PlanStatusActive).
		Count(&count).Error)
	assert.EqualValues(t, 1, count, "never two active plans for one course")
}

func TestCreatePlanCourseNotOwned(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	_, course := seedUserAndCourse(t, db)

	other := models.User{Name: "Marat", Email: "marat@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&other).Error)

	_, err := svc.CreatePlan(context.Background(), other.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	var authErr *utils.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestCreatePlanRejectsEmptySchedule(t *testing.T) {
	stub := &stubPlanner{err: utils.NewUpstreamError("Failed to parse AI response", fmt.Errorf("empty daily schedule"))}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	_, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	var upstreamErr *utils.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)

	var count int64
	require.NoError(t, db.Model(&models.StudyPlan{}).Count(&count).Error)
	assert.EqualValues(t, 0, count, "upstream failure must not persist a plan")
}

func TestCompleteTopicScenario(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	low := 2
	plan, needsReview, err := svc.CompleteTopic(context.Background(), created.ID, user.ID, 1, "Limits", &low, "shaky")
	require.NoError(t, err)
	assert.True(t, needsReview)
	assert.Equal(t, 25, plan.Progress())

	day1 := plan.FindDay(1)
	require.NotNil(t, day1)
	topic := day1.FindTopic("Limits")
	require.NotNil(t, topic)
	assert.True(t, topic.Completed)
	assert.NotNil(t, topic.CompletedAt)
	require.NotNil(t, topic.Confidence)
	assert.Equal(t, 2, *topic.Confidence)
	assert.False(t, day1.Completed, "one of two topics done")

	// The low rating lands in confidence tracking.
	all, lowRecords, err := svc.ConfidenceReport(user.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, lowRecords, 1)
	assert.Equal(t, "Limits", lowRecords[0].Topic)
	assert.True(t, lowRecords[0].NeedsReview)

	// Completing everything drives progress to 100 and closes the plan.
	high := 5
	_, needsReview, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 1, "Derivatives", &high, "")
	require.NoError(t, err)
	assert.False(t, needsReview)
	_, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 2, "Integrals", nil, "")
	require.NoError(t, err)
	plan, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 2, "Series", nil, "")
	require.NoError(t, err)

	assert.Equal(t, 100, plan.Progress())
	assert.True(t, plan.FindDay(1).Completed)
	assert.True(t, plan.FindDay(2).Completed)
	assert.Equal(t, models.PlanStatusCompleted, plan.Status)
}

func TestCompleteTopicNotFound(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	var notFoundErr *utils.NotFoundError

	_, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 9, "Limits", nil, "")
	require.ErrorAs(t, err, &notFoundErr)

	_, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 1, "Topology", nil, "")
	require.ErrorAs(t, err, &notFoundErr)

	_, _, err = svc.CompleteTopic(context.Background(), created.ID+100, user.ID, 1, "Limits", nil, "")
	require.ErrorAs(t, err, &notFoundErr)

	// A failed lookup leaves the plan untouched.
	reloaded, err := svc.GetActivePlan(user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.CompletedTopics())
}

func TestCompleteTopicAuthorization(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	stranger := models.User{Name: "Dana", Email: "dana@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&stranger).Error)

	_, _, err = svc.CompleteTopic(context.Background(), created.ID, stranger.ID, 1, "Limits", nil, "")
	var authErr *utils.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// Collaborators have append rights to completion state.
	_, err = svc.AddCollaborator(created.ID, user.ID, stranger.Email)
	require.NoError(t, err)

	_, _, err = svc.CompleteTopic(context.Background(), created.ID, stranger.ID, 1, "Limits", nil, "")
	require.NoError(t, err)
}

func TestAdaptiveReplan(t *testing.T) {
	stub := &stubPlanner{
		plan: twoDayPlan(),
		adaptive: &AdaptivePlan{
			PriorityTopics:  []string{"Integrals"},
			OptionalTopics:  []string{"Series"},
			Recommendations: []string{"Focus on fundamentals"},
		},
	}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	low := 2
	_, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 1, "Limits", &low, "")
	require.NoError(t, err)

	suggestions, snapshot, err := svc.AdaptiveReplan(context.Background(), created.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Integrals"}, suggestions.PriorityTopics)
	assert.Equal(t, 1, snapshot.Completed)
	assert.Equal(t, 4, snapshot.Total)
	assert.Greater(t, snapshot.DaysRemaining, 0)

	reloaded, err := svc.GetActivePlan(user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ReplanCount)
	assert.NotNil(t, reloaded.LastReplanned)
}

func TestAdaptiveReplanExamPassed(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	// Inserted directly: CreatePlan would reject a past exam date.
	plan := models.StudyPlan{
		UserID:   user.ID,
		CourseID: course.ID,
		ExamDate: time.Now().AddDate(0, 0, -1),
		Status:   models.PlanStatusActive,
		Days: []models.PlanDay{
			{Day: 1, Date: time.Now().AddDate(0, 0, -3), Topics: []models.PlanTopic{{Name: "Limits"}}},
		},
	}
	require.NoError(t, db.Create(&plan).Error)

	_, _, err := svc.AdaptiveReplan(context.Background(), plan.ID, user.ID)
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "already passed")
}

func TestReviewScheduleNoCompletions(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan(), review: &ReviewScheduleResult{}}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	schedule, err := svc.ReviewScheduleForPlan(context.Background(), created.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, schedule.ReviewSchedule)
	assert.False(t, stub.reviewCalled, "no upstream call without completed topics")
}

func TestReviewScheduleWithCompletions(t *testing.T) {
	stub := &stubPlanner{
		plan: twoDayPlan(),
		review: &ReviewScheduleResult{ReviewSchedule: []ReviewSession{
			{Date: "2025-01-15", Topics: []string{"Limits"}, ReviewType: "quick", EstimatedTime: 30},
		}},
	}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)
	_, _, err = svc.CompleteTopic(context.Background(), created.ID, user.ID, 1, "Limits", nil, "")
	require.NoError(t, err)

	schedule, err := svc.ReviewScheduleForPlan(context.Background(), created.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, schedule.ReviewSchedule, 1)
	assert.True(t, stub.reviewCalled)
}

func TestAddCollaborator(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	friend := models.User{Name: "Marat", Email: "marat@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&friend).Error)

	var validationErr *utils.ValidationError
	var authErr *utils.AuthorizationError
	var notFoundErr *utils.NotFoundError

	_, err = svc.AddCollaborator(created.ID, user.ID, user.Email)
	require.ErrorAs(t, err, &validationErr, "self-addition rejected")

	_, err = svc.AddCollaborator(created.ID, friend.ID, friend.Email)
	require.ErrorAs(t, err, &authErr, "only the owner may add")

	_, err = svc.AddCollaborator(created.ID, user.ID, "nobody@example.com")
	require.ErrorAs(t, err, &notFoundErr)

	plan, err := svc.AddCollaborator(created.ID, user.ID, friend.Email)
	require.NoError(t, err)
	require.Len(t, plan.Collaborators, 1)
	assert.Equal(t, friend.ID, plan.Collaborators[0].ID)

	_, err = svc.AddCollaborator(created.ID, user.ID, friend.Email)
	require.ErrorAs(t, err, &validationErr, "duplicate rejected")

	// The plan is now visible to the collaborator.
	latest, err := svc.LatestActivePlan(friend.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, latest.ID)
}

func TestLatestActivePlanNone(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, _ := seedUserAndCourse(t, db)

	_, err := svc.LatestActivePlan(user.ID)
	var notFoundErr *utils.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestAbandonPlan(t *testing.T) {
	stub := &stubPlanner{plan: twoDayPlan()}
	svc, db := newPlanService(t, stub)
	user, course := seedUserAndCourse(t, db)

	created, err := svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)

	plan, err := svc.AbandonPlan(created.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusAbandoned, plan.Status)

	// Abandoned is terminal.
	_, err = svc.AbandonPlan(created.ID, user.ID)
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// A new plan can now be created for the course.
	_, err = svc.CreatePlan(context.Background(), user.ID, course.ID, time.Now().AddDate(0, 0, 5), 4, "")
	require.NoError(t, err)
}
