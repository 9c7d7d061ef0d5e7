package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"studypulse/config"
	"studypulse/controllers"
	"studypulse/middleware"
	"studypulse/services"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	planner := services.NewPerplexityPlanner(cfg.PerplexityBaseURL, cfg.PerplexityAPIKey, cfg.PerplexityModel)

	var email services.EmailService
	if cfg.SendGridAPIKey != "" {
		email = services.NewSendGridEmailService(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	} else {
		email = services.NewConsoleEmailService(logger)
	}

	streakService := services.NewStreakService(db)
	planService := services.NewStudyPlanService(db, planner, email, logger, cfg.FrontendURL)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	authMiddleware := middleware.AuthMiddleware(cfg)

	// Task routes
	taskController := controllers.NewTaskController(db, cfg)
	tasks := app.Group("/api/tasks", authMiddleware)
	tasks.Get("/", taskController.GetTasks)
	tasks.Post("/", taskController.CreateTask)
	tasks.Put("/:id", taskController.UpdateTask)
	tasks.Delete("/:id", taskController.DeleteTask)

	// Course routes
	courseController := controllers.NewCourseController(db, cfg)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/", courseController.GetCourses)
	courses.Post("/", courseController.CreateCourse)
	courses.Get("/:id", courseController.GetCourse)

	// Streak routes
	streakController := controllers.NewStreakController(streakService, cfg, logger)
	app.Get("/api/streaks", authMiddleware, streakController.GetStreaks)

	// Study plan routes. "latest" must be registered before ":courseId".
	planController := controllers.NewStudyPlanController(planService, cfg, logger)
	plans := app.Group("/api/study-plans", authMiddleware)
	plans.Post("/generate", planController.GeneratePlan)
	plans.Get("/latest", planController.GetLatestPlan)
	plans.Get("/:courseId", planController.GetPlan)
	plans.Put("/:id/complete-topic", planController.CompleteTopic)
	plans.Put("/:id/replan", planController.Replan)
	plans.Put("/:id/abandon", planController.AbandonPlan)
	plans.Get("/:id/review-schedule", planController.ReviewSchedule)
	plans.Get("/:courseId/confidence", planController.GetConfidence)
	plans.Post("/:id/collaborators", planController.AddCollaborator)
}
