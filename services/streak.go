package services

import (
	"time"

	"gorm.io/gorm"

	"studypulse/models"
	"studypulse/utils"
)

// History window lengths, in days.
const (
	GlobalHistoryWindow = 365
	CourseHistoryWindow = 14
)

// ComputeStreak derives the current streak and a trailing history window
// from per-day completion counts keyed by YYYY-MM-DD.
//
// The streak counts a maximal run of consecutive calendar days each with at
// least one event, ending at the reference date or the day before: if the
// reference date itself has no event the walk starts one day earlier, so a
// single gap day never breaks an otherwise-live streak. IsActive holds iff
// the reference date or the previous day has an event.
func ComputeStreak(counts map[string]int, referenceDate time.Time, window int) (models.StreakResult, error) {
	for key := range counts {
		if _, err := utils.ParseDayKey(key); err != nil {
			return models.StreakResult{}, utils.NewValidationError("invalid activity date %q", key)
		}
	}

	today := utils.DayKey(referenceDate)
	yesterday := utils.DayKey(referenceDate.AddDate(0, 0, -1))
	isActive := counts[today] > 0 || counts[yesterday] > 0

	check := referenceDate
	if counts[today] == 0 {
		check = check.AddDate(0, 0, -1)
	}

	streak := 0
	for counts[utils.DayKey(check)] > 0 {
		streak++
		check = check.AddDate(0, 0, -1)
	}

	history := make([]models.DayActivity, 0, window)
	for i := window - 1; i >= 0; i-- {
		day := utils.DayKey(referenceDate.AddDate(0, 0, -i))
		history = append(history, models.DayActivity{
			Date:      day,
			Completed: counts[day] > 0,
			Count:     counts[day],
		})
	}

	return models.StreakResult{Streak: streak, IsActive: isActive, History: history}, nil
}

type StreakService struct {
	DB *gorm.DB
}

func NewStreakService(db *gorm.DB) *StreakService {
	return &StreakService{DB: db}
}

// BuildReport computes the global streak plus one streak per course from
// the user's Done tasks. Tasks without a course count globally only.
func (s *StreakService) BuildReport(userID uint, referenceDate time.Time) (*models.StreakReport, error) {
	var tasks []models.Task
	if err := s.DB.Preload("Course").
		Where("user_id = ? AND status = ?", userID, models.TaskStatusDone).
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	globalCounts := make(map[string]int)
	courseCounts := make(map[string]map[string]int)

	for i := range tasks {
		day := utils.DayKey(tasks[i].CompletionInstant())
		globalCounts[day]++

		if tasks[i].Course == nil {
			continue
		}
		name := tasks[i].Course.Name
		if courseCounts[name] == nil {
			courseCounts[name] = make(map[string]int)
		}
		courseCounts[name][day]++
	}

	global, err := ComputeStreak(globalCounts, referenceDate, GlobalHistoryWindow)
	if err != nil {
		return nil, err
	}

	courses := make(map[string]models.StreakResult, len(courseCounts))
	for name, counts := range courseCounts {
		result, err := ComputeStreak(counts, referenceDate, CourseHistoryWindow)
		if err != nil {
			return nil, err
		}
		courses[name] = result
	}

	return &models.StreakReport{Global: global, Courses: courses}, nil
}
