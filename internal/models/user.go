package models

import (
	"time"

	"gorm.io/gorm"
)

// Role identifies the portal-wide capability class of a user.
type Role string

// Supported user roles.
const (
	RoleStudent     Role = "student"
	RoleFaculty     Role = "faculty"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// User statuses.
const (
	UserStatusActive   = "active"
	UserStatusArchived = "archived"
)

// User represents a portal account. Accounts are provisioned either by an
// admin or on first Google sign-in; Google-provisioned accounts carry no
// password hash and can only authenticate through the ID-token flow.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Email               string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name                string         `gorm:"size:255;not null" json:"name"`
	PasswordHash        string         `gorm:"size:255" json:"-"`
	Role                Role           `gorm:"size:32;not null;default:student" json:"role"`
	IsCoordinator       bool           `gorm:"not null;default:false" json:"is_coordinator"`
	IsExternalEvaluator bool           `gorm:"not null;default:false" json:"is_external_evaluator"`
	Eligibility         ProjectType    `gorm:"size:16" json:"eligibility,omitempty"`
	Status              string         `gorm:"size:32;not null;default:active" json:"status"`
	LastLoginAt         *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsPrivileged reports whether the user bypasses window gating. Coordinators
// are recognized both by role and by the coordinator flag carried by faculty.
func (u User) IsPrivileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleCoordinator || u.IsCoordinator
}

// EligibleFor reports whether the user may act on the given project type.
// Eligibility only constrains students; every other role passes vacuously.
func (u User) EligibleFor(projectType ProjectType) bool {
	if u.Role != RoleStudent {
		return true
	}
	return u.Eligibility == projectType
}

// ValidRole reports whether the supplied value names a known role.
func ValidRole(role Role) bool {
	switch role {
	case RoleStudent, RoleFaculty, RoleCoordinator, RoleAdmin:
		return true
	default:
		return false
	}
}
