package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	College      string `json:"college"`
	Branch       string `json:"branch"`
	Year         int    `gorm:"default:1" json:"year"`
}
