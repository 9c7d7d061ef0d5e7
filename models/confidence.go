package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// ConfidenceRating is one self-assessment event in a record's history.
type ConfidenceRating struct {
	Score     int       `json:"score"`
	Note      string    `json:"note,omitempty"`
	Context   string    `json:"context,omitempty"` // after_learning, after_practice, before_exam, ...
	Timestamp time.Time `json:"timestamp"`
}

// ConfidenceTracking holds the append-only confidence history for one
// (user, course, topic). Created lazily on first rating.
type ConfidenceTracking struct {
	gorm.Model
	UserID      uint           `gorm:"uniqueIndex:idx_confidence_scope;not null" json:"user_id"`
	CourseID    uint           `gorm:"uniqueIndex:idx_confidence_scope;not null" json:"course_id"`
	StudyPlanID *uint          `json:"study_plan_id"`
	Topic       string         `gorm:"uniqueIndex:idx_confidence_scope;not null" json:"topic"`
	History     datatypes.JSON `json:"confidence_history"`

	CurrentConfidence int        `json:"current_confidence"`
	NeedsReview       bool       `gorm:"default:false" json:"needs_review"`
	LastReviewed      *time.Time `json:"last_reviewed"`
	ReviewCount       int        `gorm:"default:0" json:"review_count"`
}

// Ratings decodes the stored history. An empty column decodes to nil.
func (ct *ConfidenceTracking) Ratings() ([]ConfidenceRating, error) {
	if len(ct.History) == 0 {
		return nil, nil
	}
	var ratings []ConfidenceRating
	if err := json.Unmarshal(ct.History, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}

// AddRating appends a rating to the history and updates the derived
// fields: current confidence becomes the new score, and the record is
// flagged for review when the score falls below 3.
func (ct *ConfidenceTracking) AddRating(score int, note, context string, now time.Time) error {
	ratings, err := ct.Ratings()
	if err != nil {
		return err
	}

	ratings = append(ratings, ConfidenceRating{
		Score:     score,
		Note:      note,
		Context:   context,
		Timestamp: now,
	})

	encoded, err := json.Marshal(ratings)
	if err != nil {
		return err
	}

	ct.History = encoded
	ct.CurrentConfidence = score
	ct.NeedsReview = score < 3
	return nil
}

// Trend compares the first and last score among the most recent three
// ratings: improving, declining, stable, or insufficient_data when fewer
// than two ratings exist.
func (ct *ConfidenceTracking) Trend() string {
	ratings, err := ct.Ratings()
	if err != nil || len(ratings) < 2 {
		return TrendInsufficientData
	}

	recent := ratings
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	first := recent[0].Score
	last := recent[len(recent)-1].Score

	switch {
	case last > first:
		return TrendImproving
	case last < first:
		return TrendDeclining
	default:
		return TrendStable
	}
}
