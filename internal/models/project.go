package models

import "time"

// ProjectType partitions the portal into its three programme tracks.
type ProjectType string

// Supported project types.
const (
	ProjectTypeIDP      ProjectType = "IDP"
	ProjectTypeUROP     ProjectType = "UROP"
	ProjectTypeCapstone ProjectType = "CAPSTONE"
)

// ValidProjectType reports whether the supplied value names a known track.
func ValidProjectType(projectType ProjectType) bool {
	switch projectType {
	case ProjectTypeIDP, ProjectTypeUROP, ProjectTypeCapstone:
		return true
	default:
		return false
	}
}

// Project is a faculty-proposed topic that groups apply to. Capacity bounds
// how many groups can be approved onto it.
type Project struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"size:255;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	ProjectType ProjectType `gorm:"size:16;not null;index" json:"project_type"`
	FacultyID   uint        `gorm:"not null;index" json:"faculty_id"`
	Capacity    int         `gorm:"not null;default:1" json:"capacity"`
	Open        bool        `gorm:"not null;default:true" json:"open"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Faculty     User        `gorm:"foreignKey:FacultyID" json:"-"`
}
