package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	gorm.Model
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	CourseID      *uint      `gorm:"index" json:"course_id"`
	Course        *Course    `json:"course,omitempty"`
	Title         string     `gorm:"not null" json:"title"`
	Description   string     `json:"description"`
	Type          string     `gorm:"default:Assignment" json:"type"`
	Status        TaskStatus `gorm:"default:Todo" json:"status"`
	Priority      string     `gorm:"default:Medium" json:"priority"`
	Deadline      *time.Time `json:"deadline"`
	CompletedAt   *time.Time `json:"completed_at"`
	EstimatedTime int        `gorm:"default:120" json:"estimated_time"` // minutes
}

// CompletionInstant is the moment a Done task counts toward streaks: the
// recorded completion time if present, else the last-modified time.
func (t *Task) CompletionInstant() time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.UpdatedAt
}
