package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studypulse/utils"
)

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusAbandoned PlanStatus = "abandoned"
	PlanStatusReplanned PlanStatus = "replanned"
)

// planTransitions is the closed transition table: completed, abandoned and
// replanned are terminal.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusActive: {PlanStatusCompleted, PlanStatusAbandoned, PlanStatusReplanned},
}

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusAbandoned, PlanStatusReplanned:
		return true
	}
	return false
}

func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StudyPlan is the day-by-day schedule generated for one course's exam.
// At most one plan per (user, course) may be active.
type StudyPlan struct {
	gorm.Model
	UserID   uint       `gorm:"index;not null" json:"user_id"`
	CourseID uint       `gorm:"index;not null" json:"course_id"`
	Course   *Course    `json:"course,omitempty"`
	ExamDate time.Time  `gorm:"not null" json:"exam_date"`
	Status   PlanStatus `gorm:"index;default:active" json:"status"`

	TotalDays     int            `json:"total_days"`
	HoursPerDay   float64        `json:"hours_per_day"`
	StudentLevel  string         `gorm:"default:intermediate" json:"student_level"`
	Dependencies  datatypes.JSON `json:"dependencies,omitempty"`
	StudyTips     datatypes.JSON `json:"study_tips,omitempty"`
	ExamStrategy  string         `json:"exam_strategy"`
	LastReplanned *time.Time     `json:"last_replanned"`
	ReplanCount   int            `gorm:"default:0" json:"replan_count"`

	Days          []PlanDay `gorm:"constraint:OnDelete:CASCADE" json:"days"`
	Collaborators []User    `gorm:"many2many:study_plan_collaborators;" json:"collaborators,omitempty"`
}

type PlanDay struct {
	gorm.Model
	StudyPlanID  uint           `gorm:"index;not null" json:"study_plan_id"`
	Day          int            `gorm:"not null" json:"day"`
	Date         time.Time      `gorm:"not null" json:"date"`
	TotalHours   float64        `json:"total_hours"`
	Completed    bool           `gorm:"default:false" json:"completed"`
	ReviewTopics datatypes.JSON `json:"review_topics,omitempty"`
	Topics       []PlanTopic    `gorm:"foreignKey:PlanDayID;constraint:OnDelete:CASCADE" json:"topics"`
}

type PlanTopic struct {
	gorm.Model
	PlanDayID       uint       `gorm:"index;not null" json:"plan_day_id"`
	Name            string     `gorm:"not null" json:"name"`
	HoursAllocated  float64    `json:"hours_allocated"`
	Difficulty      string     `gorm:"default:intermediate" json:"difficulty"`
	GoalDescription string     `json:"goal_description"`
	Completed       bool       `gorm:"default:false" json:"completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	Confidence      *int       `json:"confidence"`
}

// FindDay locates a schedule day by its day number. Nil if absent.
func (p *StudyPlan) FindDay(day int) *PlanDay {
	for i := range p.Days {
		if p.Days[i].Day == day {
			return &p.Days[i]
		}
	}
	return nil
}

// FindTopic locates a topic by exact name within the day. Nil if absent;
// no fuzzy matching.
func (d *PlanDay) FindTopic(name string) *PlanTopic {
	for i := range d.Topics {
		if d.Topics[i].Name == name {
			return &d.Topics[i]
		}
	}
	return nil
}

func (p *StudyPlan) TotalTopics() int {
	total := 0
	for i := range p.Days {
		total += len(p.Days[i].Topics)
	}
	return total
}

func (p *StudyPlan) CompletedTopics() int {
	completed := 0
	for i := range p.Days {
		for j := range p.Days[i].Topics {
			if p.Days[i].Topics[j].Completed {
				completed++
			}
		}
	}
	return completed
}

// Progress is the completion percentage, rounded. Zero for a plan with no
// topics.
func (p *StudyPlan) Progress() int {
	total := p.TotalTopics()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(p.CompletedTopics()) / float64(total) * 100))
}

// TodaySchedule returns the day whose date matches today's calendar day,
// or nil if the schedule has no entry for it.
func (p *StudyPlan) TodaySchedule(today time.Time) *PlanDay {
	for i := range p.Days {
		if utils.SameDay(p.Days[i].Date, today) {
			return &p.Days[i]
		}
	}
	return nil
}

// IsBehindSchedule flags the plan when completions for past days fall under
// 70% of the topics scheduled for those days. The current day is excluded
// from both sums, so a plan with no past days is never behind.
func (p *StudyPlan) IsBehindSchedule(today time.Time) bool {
	todayStart := utils.StartOfDay(today)

	shouldBeCompleted := 0
	actuallyCompleted := 0

	for i := range p.Days {
		if !utils.StartOfDay(p.Days[i].Date).Before(todayStart) {
			continue
		}
		shouldBeCompleted += len(p.Days[i].Topics)
		for j := range p.Days[i].Topics {
			if p.Days[i].Topics[j].Completed {
				actuallyCompleted++
			}
		}
	}

	return float64(actuallyCompleted) < float64(shouldBeCompleted)*0.7
}

func (p *StudyPlan) IsOwner(userID uint) bool {
	return p.UserID == userID
}

func (p *StudyPlan) HasCollaborator(userID uint) bool {
	for i := range p.Collaborators {
		if p.Collaborators[i].ID == userID {
			return true
		}
	}
	return false
}

// CanView reports whether the user is the owner or a collaborator.
func (p *StudyPlan) CanView(userID uint) bool {
	return p.IsOwner(userID) || p.HasCollaborator(userID)
}
