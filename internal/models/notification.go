package models

import "time"

// Notification kinds emitted by portal workflows.
const (
	NotificationKindDecision  = "application_decision"
	NotificationKindEvaluated = "evaluation_finalized"
	NotificationKindWindow    = "window_change"
	NotificationKindGeneric   = "generic"
)

// Notification is a per-user message produced by a workflow transition and
// delivered both at rest (this row) and live over the SSE stream.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Kind      string    `gorm:"size:64;not null;default:generic" json:"kind"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
