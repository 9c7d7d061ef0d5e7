package controllers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"studypulse/config"
	"studypulse/services"
	"studypulse/utils"
)

type StudyPlanController struct {
	Plans  *services.StudyPlanService
	Cfg    *config.Config
	Logger *log.Logger
}

func NewStudyPlanController(plans *services.StudyPlanService, cfg *config.Config, logger *log.Logger) *StudyPlanController {
	return &StudyPlanController{Plans: plans, Cfg: cfg, Logger: logger}
}

type GeneratePlanRequest struct {
	CourseID     uint    `json:"courseId" validate:"required"`
	ExamDate     string  `json:"examDate" validate:"required"`
	HoursPerDay  float64 `json:"hoursPerDay" validate:"omitempty,gt=0"`
	StudentLevel string  `json:"studentLevel" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type CompleteTopicRequest struct {
	Day        int    `json:"day" validate:"required,min=1"`
	TopicName  string `json:"topicName" validate:"required"`
	Confidence *int   `json:"confidence" validate:"omitempty,min=1,max=5"`
	Note       string `json:"note"`
}

type AddCollaboratorRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// GeneratePlan godoc
// @Summary Generate a study plan
// @Tags study-plans
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Router /study-plans/generate [post]
func (spc *StudyPlanController) GeneratePlan(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req GeneratePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Course ID and exam date are required",
		})
	}

	examDate, err := time.Parse(time.RFC3339, req.ExamDate)
	if err != nil {
		if examDate, err = utils.ParseDayKey(req.ExamDate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid exam date",
			})
		}
	}

	plan, err := spc.Plans.CreatePlan(c.Context(), userID, req.CourseID, examDate, req.HoursPerDay, req.StudentLevel)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Study plan generated successfully",
		"studyPlan": plan,
	})
}

// GetPlan returns the active plan for a course with today's tasks,
// progress and the behind-schedule flag.
func (spc *StudyPlanController) GetPlan(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	plan, err := spc.Plans.GetActivePlan(userID, uint(courseID))
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	now := time.Now()
	return c.JSON(fiber.Map{
		"studyPlan":  plan,
		"todayTasks": plan.TodaySchedule(now),
		"progress":   plan.Progress(),
		"isBehind":   plan.IsBehindSchedule(now),
	})
}

// CompleteTopic godoc
// @Summary Mark a topic complete and optionally rate confidence
// @Tags study-plans
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Router /study-plans/{id}/complete-topic [put]
func (spc *StudyPlanController) CompleteTopic(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan ID",
		})
	}

	var req CompleteTopicRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Day and topic name are required",
		})
	}

	plan, needsReview, err := spc.Plans.CompleteTopic(c.Context(), uint(planID), userID, req.Day, req.TopicName, req.Confidence, req.Note)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Topic marked as complete",
		"studyPlan":   plan,
		"needsReview": needsReview,
	})
}

func (spc *StudyPlanController) Replan(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan ID",
		})
	}

	suggestions, snapshot, err := spc.Plans.AdaptiveReplan(c.Context(), uint(planID), userID)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message":         "Adaptive plan suggestions generated",
		"suggestions":     suggestions,
		"currentProgress": snapshot,
	})
}

func (spc *StudyPlanController) ReviewSchedule(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan ID",
		})
	}

	schedule, err := spc.Plans.ReviewScheduleForPlan(c.Context(), uint(planID), userID)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"reviewSchedule": schedule.ReviewSchedule,
	})
}

func (spc *StudyPlanController) GetConfidence(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	courseID, err := strconv.Atoi(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	all, low, err := spc.Plans.ConfidenceReport(userID, uint(courseID))
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"allTopics":           all,
		"lowConfidenceTopics": low,
		"needsReview":         len(low),
	})
}

func (spc *StudyPlanController) AddCollaborator(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan ID",
		})
	}

	var req AddCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	plan, err := spc.Plans.AddCollaborator(uint(planID), userID, req.Email)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message":       "Collaborator added successfully",
		"collaborators": plan.Collaborators,
	})
}

func (spc *StudyPlanController) GetLatestPlan(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	plan, err := spc.Plans.LatestActivePlan(userID)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(plan)
}

func (spc *StudyPlanController) AbandonPlan(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, spc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan ID",
		})
	}

	plan, err := spc.Plans.AbandonPlan(uint(planID), userID)
	if err != nil {
		return utils.RespondError(c, spc.Logger, err)
	}

	return c.JSON(fiber.Map{
		"message":   "Study plan abandoned",
		"studyPlan": plan,
	})
}
