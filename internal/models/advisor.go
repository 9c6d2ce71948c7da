package models

import (
	"time"
)

// SecurityAdvisor is a human who takes over escalated sessions
type SecurityAdvisor struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"size:255;not null"`
	Email           string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Phone           *string   `json:"phone,omitempty" gorm:"size:20"`
	Specialization  []string  `json:"specialization" gorm:"serializer:json;type:text"`
	Certifications  []string  `json:"certifications" gorm:"serializer:json;type:text"`
	ExperienceYears int       `json:"experience_years" gorm:"not null;default:0"`
	IsAvailable     bool      `json:"is_available" gorm:"not null;index:idx_advisors_available_load"`
	CurrentLoad     int       `json:"current_load" gorm:"not null;default:0;index:idx_advisors_available_load"`
	MaxLoad         int       `json:"max_load" gorm:"not null;default:10"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasCapacity reports whether the advisor can take another session
func (a *SecurityAdvisor) HasCapacity() bool {
	return a.IsAvailable && a.CurrentLoad < a.MaxLoad
}
