package models

import "time"

// WindowKind names the gated action a window controls.
type WindowKind string

// Supported window kinds.
const (
	WindowKindApplication        WindowKind = "application"
	WindowKindInternalEvaluation WindowKind = "internal_evaluation"
	WindowKindExternalEvaluation WindowKind = "external_evaluation"
)

// ValidWindowKind reports whether the supplied value names a known kind.
func ValidWindowKind(kind WindowKind) bool {
	switch kind {
	case WindowKindApplication, WindowKindInternalEvaluation, WindowKindExternalEvaluation:
		return true
	default:
		return false
	}
}

// Window is a time-bounded gate for one (kind, project type) pair. Whether a
// window is active is always derived from the date pair against the clock at
// decision time; no cached activity flag exists on the row.
type Window struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Kind           WindowKind  `gorm:"size:32;not null;index:idx_window_kind_type" json:"kind"`
	ProjectType    ProjectType `gorm:"size:16;not null;index:idx_window_kind_type" json:"project_type"`
	AssessmentType string      `gorm:"size:32" json:"assessment_type,omitempty"`
	StartDate      time.Time   `gorm:"not null" json:"start_date"`
	EndDate        time.Time   `gorm:"not null" json:"end_date"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Contains reports whether the reference instant falls inside the window,
// boundaries included.
func (w Window) Contains(reference time.Time) bool {
	return !reference.Before(w.StartDate) && !reference.After(w.EndDate)
}

// WindowState is the tri-state outcome of a window lookup. Unknown is
// reserved for dependency failures so callers can distinguish "gate closed"
// from "gate state undeterminable" and fail closed deliberately.
type WindowState string

// Window states.
const (
	WindowStateActive   WindowState = "active"
	WindowStateInactive WindowState = "inactive"
	WindowStateUnknown  WindowState = "unknown"
)

// WindowStatus is the resolver verdict for one (kind, project type) pair.
type WindowStatus struct {
	State  WindowState `json:"state"`
	Window *Window     `json:"window,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Active is a convenience accessor for gate checks.
func (s WindowStatus) Active() bool {
	return s.State == WindowStateActive
}
