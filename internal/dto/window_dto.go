package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// WindowCreateRequest describes the payload for opening a new time window.
type WindowCreateRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=application internal_evaluation external_evaluation"`
	ProjectType    string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	AssessmentType string `json:"assessment_type" validate:"omitempty,oneof=A1 A2 A3 external"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// WindowUpdateRequest describes the payload for adjusting a window.
type WindowUpdateRequest struct {
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// WindowListRequest defines filters for listing windows.
type WindowListRequest struct {
	Kind           string
	ProjectType    string
	AssessmentType string
	Page           int
	PageSize       int
}

// WindowResponse is the serialized representation returned to API clients.
type WindowResponse struct {
	ID             uint      `json:"id"`
	Kind           string    `json:"kind"`
	ProjectType    string    `json:"project_type"`
	AssessmentType string    `json:"assessment_type,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WindowListResponse wraps a paginated window response.
type WindowListResponse struct {
	Items      []WindowResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// WindowStatusResponse reports the resolved state of a window kind at the
// moment of the request.
type WindowStatusResponse struct {
	State     string          `json:"state"`
	Window    *WindowResponse `json:"window,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}

// NewWindowResponse converts a model into a DTO.
func NewWindowResponse(model models.Window) WindowResponse {
	return WindowResponse{
		ID:             model.ID,
		Kind:           string(model.Kind),
		ProjectType:    string(model.ProjectType),
		AssessmentType: model.AssessmentType,
		StartDate:      model.StartDate,
		EndDate:        model.EndDate,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewWindowResponseSlice converts a slice of models into DTOs.
func NewWindowResponseSlice(windows []models.Window) []WindowResponse {
	responses := make([]WindowResponse, 0, len(windows))
	for _, window := range windows {
		responses = append(responses, NewWindowResponse(window))
	}

	return responses
}

// NewWindowStatusResponse converts a resolved status into a DTO.
func NewWindowStatusResponse(status models.WindowStatus, checkedAt time.Time) WindowStatusResponse {
	response := WindowStatusResponse{
		State:     string(status.State),
		Reason:    status.Reason,
		CheckedAt: checkedAt,
	}
	if status.Window != nil {
		window := NewWindowResponse(*status.Window)
		response.Window = &window
	}

	return response
}
