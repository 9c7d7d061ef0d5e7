package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"studypulse/config"
	"studypulse/models"
	"studypulse/utils"
)

type TaskController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewTaskController(db *gorm.DB, cfg *config.Config) *TaskController {
	return &TaskController{DB: db, Cfg: cfg}
}

type CreateTaskRequest struct {
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Priority      string     `json:"priority"`
	CourseID      *uint      `json:"course_id"`
	Deadline      *time.Time `json:"deadline"`
	EstimatedTime int        `json:"estimated_time"`
}

type UpdateTaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Priority    *string            `json:"priority"`
	Status      *models.TaskStatus `json:"status"`
	Deadline    *time.Time         `json:"deadline"`
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	task := models.Task{
		UserID:        userID,
		CourseID:      req.CourseID,
		Title:         req.Title,
		Description:   req.Description,
		Status:        models.TaskStatusTodo,
		Deadline:      req.Deadline,
		EstimatedTime: req.EstimatedTime,
	}
	if req.Type != "" {
		task.Type = req.Type
	}
	if req.Priority != "" {
		task.Priority = req.Priority
	}

	if err := tc.DB.Create(&task).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create task",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	query := tc.DB.Preload("Course").Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		if !models.TaskStatus(status).Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid task status",
			})
		}
		query = query.Where("status = ?", status)
	}
	if courseID := c.Query("course_id"); courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

// UpdateTask mutates task fields. A status change to Done stamps the
// completion instant; moving away from Done clears it.
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	taskID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task ID",
		})
	}

	var task models.Task
	err = tc.DB.Where("user_id = ?", userID).First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Deadline != nil {
		task.Deadline = req.Deadline
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid task status",
			})
		}
		if *req.Status == models.TaskStatusDone && task.Status != models.TaskStatusDone {
			now := time.Now()
			task.CompletedAt = &now
		}
		if *req.Status != models.TaskStatusDone {
			task.CompletedAt = nil
		}
		task.Status = *req.Status
	}

	if err := tc.DB.Save(&task).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update task",
		})
	}

	return c.JSON(fiber.Map{"task": task})
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	taskID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task ID",
		})
	}

	result := tc.DB.Where("user_id = ?", userID).Delete(&models.Task{}, taskID)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete task",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Task deleted"})
}
