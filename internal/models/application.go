package models

import "time"

// ApplicationStatus tracks the decision state machine. Pending is the only
// non-terminal state; approved and rejected are terminal.
type ApplicationStatus string

// Application statuses.
const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Choice list bounds.
const (
	MinApplicationChoices = 1
	MaxApplicationChoices = 3
)

// Application is a group's ranked bid for projects of one type. DecidedAt is
// set on the first transition into a terminal state and never overwritten;
// LockVersion guards the decision against concurrent writers.
type Application struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	GroupID           uint                `gorm:"not null;uniqueIndex:idx_application_group_type" json:"group_id"`
	ProjectType       ProjectType         `gorm:"size:16;not null;uniqueIndex:idx_application_group_type" json:"project_type"`
	Status            ApplicationStatus   `gorm:"size:16;not null;default:pending;index" json:"status"`
	Statement         string              `gorm:"type:text" json:"statement"`
	AssignedProjectID *uint               `json:"assigned_project_id,omitempty"`
	DecidedBy         *uint               `json:"decided_by,omitempty"`
	DecidedAt         *time.Time          `json:"decided_at,omitempty"`
	DecisionNote      string              `gorm:"type:text" json:"decision_note,omitempty"`
	LockVersion       int                 `gorm:"not null;default:0" json:"lock_version"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Group             Group               `gorm:"foreignKey:GroupID" json:"-"`
	Choices           []ApplicationChoice `gorm:"foreignKey:ApplicationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"choices"`
}

// VersionStamp returns the optimistic lock version of the row.
func (a Application) VersionStamp() int {
	return a.LockVersion
}

// Decided reports whether the application reached a terminal state.
func (a Application) Decided() bool {
	return a.Status == ApplicationStatusApproved || a.Status == ApplicationStatusRejected
}

// ChoiceProjectIDs returns the chosen project IDs ordered by rank.
func (a Application) ChoiceProjectIDs() []uint {
	ids := make([]uint, 0, len(a.Choices))
	for _, choice := range a.Choices {
		ids = append(ids, choice.ProjectID)
	}
	return ids
}

// HasChoice reports whether the project appears anywhere in the ranked list.
func (a Application) HasChoice(projectID uint) bool {
	for _, choice := range a.Choices {
		if choice.ProjectID == projectID {
			return true
		}
	}
	return false
}

// ApplicationChoice is one ranked entry of an application. Rank runs from 1
// (first preference) and is unique per application.
type ApplicationChoice struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	ApplicationID uint    `gorm:"not null;uniqueIndex:idx_choice_app_rank" json:"application_id"`
	Rank          int     `gorm:"not null;uniqueIndex:idx_choice_app_rank" json:"rank"`
	ProjectID     uint    `gorm:"not null" json:"project_id"`
	Project       Project `gorm:"foreignKey:ProjectID" json:"-"`
}
