package models

import "time"

// Course is an academic course a project track hangs off. Coordinators own
// courses; cohorts group students registered under a course for a year.
type Course struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Code          string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Semester      int       `gorm:"not null" json:"semester"`
	CoordinatorID *uint     `json:"coordinator_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Cohorts       []Cohort  `gorm:"foreignKey:CourseID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"cohorts,omitempty"`
}

// Cohort is one academic-year intake of a course for a project type.
type Cohort struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CourseID     uint        `gorm:"not null;index" json:"course_id"`
	AcademicYear string      `gorm:"size:16;not null" json:"academic_year"`
	ProjectType  ProjectType `gorm:"size:16;not null" json:"project_type"`
	Active       bool        `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
