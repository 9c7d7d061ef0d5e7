package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	Name      string          `gorm:"not null" json:"name"`
	Code      string          `json:"code"`
	Professor string          `json:"professor"`
	Semester  string          `json:"semester"`
	Color     string          `gorm:"default:#3B82F6" json:"color"`
	Syllabus  []SyllabusTopic `json:"syllabus"`
}

type SyllabusTopic struct {
	gorm.Model
	CourseID  uint   `gorm:"index;not null" json:"course_id"`
	Topic     string `gorm:"not null" json:"topic"`
	Completed bool   `gorm:"default:false" json:"completed"`
}

// SyllabusTopicNames returns the topic names in syllabus order.
func (c *Course) SyllabusTopicNames() []string {
	names := make([]string, 0, len(c.Syllabus))
	for _, s := range c.Syllabus {
		names = append(names, s.Topic)
	}
	return names
}
