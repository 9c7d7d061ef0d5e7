package models

// DayActivity is one calendar day in a streak history window.
type DayActivity struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Completed bool   `json:"completed"`
	Count     int    `json:"count"`
}

// StreakResult is the computed streak for one scope. Never persisted;
// derived on demand from completion events.
type StreakResult struct {
	Streak   int           `json:"streak"`
	IsActive bool          `json:"isActive"`
	History  []DayActivity `json:"history"`
}

// StreakReport bundles the global streak with per-course streaks.
type StreakReport struct {
	Global  StreakResult            `json:"global"`
	Courses map[string]StreakResult `json:"courses"`
}
