package controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"studypulse/config"
	"studypulse/services"
	"studypulse/utils"
)

type StreakController struct {
	Streaks *services.StreakService
	Cfg     *config.Config
	Logger  *log.Logger
}

func NewStreakController(streaks *services.StreakService, cfg *config.Config, logger *log.Logger) *StreakController {
	return &StreakController{Streaks: streaks, Cfg: cfg, Logger: logger}
}

// GetStreaks godoc
// @Summary Get study streaks
// @Description Global and per-course streak counts with activity history
// @Tags streaks
// @Produce json
// @Security ApiKeyAuth
// @Router /streaks [get]
func (sc *StreakController) GetStreaks(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, sc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	report, err := sc.Streaks.BuildReport(userID, time.Now())
	if err != nil {
		return utils.RespondError(c, sc.Logger, err)
	}

	return c.JSON(report)
}
