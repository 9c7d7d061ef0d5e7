package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"studypulse/config"
	"studypulse/models"
	"studypulse/utils"
)

type CourseController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewCourseController(db *gorm.DB, cfg *config.Config) *CourseController {
	return &CourseController{DB: db, Cfg: cfg}
}

type CreateCourseRequest struct {
	Name      string   `json:"name" validate:"required"`
	Code      string   `json:"code"`
	Professor string   `json:"professor"`
	Semester  string   `json:"semester"`
	Color     string   `json:"color"`
	Syllabus  []string `json:"syllabus"`
}

func (cc *CourseController) CreateCourse(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req CreateCourseRequest
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

	syllabus := make([]models.SyllabusTopic, 0, len(req.Syllabus))
	for _, topic := range req.Syllabus {
		syllabus = append(syllabus, models.SyllabusTopic{Topic: topic})
	}

	course := models.Course{
		UserID:    userID,
		Name:      req.Name,
		Code:      req.Code,
		Professor: req.Professor,
		Semester:  req.Semester,
		Syllabus:  syllabus,
	}
	if req.Color != "" {
		course.Color = req.Color
	}

	if err := cc.DB.Create(&course).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create course",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"course": course})
}

func (cc *CourseController) GetCourses(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var courses []models.Course
	if err := cc.DB.Preload("Syllabus").Where("user_id = ?", userID).Find(&courses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{"courses": courses})
}

func (cc *CourseController) GetCourse(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, cc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid course ID",
		})
	}

	var course models.Course
	err = cc.DB.Preload("Syllabus").Where("user_id = ?", userID).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Course not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{"course": course})
}
