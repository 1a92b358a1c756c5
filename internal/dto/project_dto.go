package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// ProjectCreateRequest describes the payload for proposing a project.
type ProjectCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=160"`
	Description string `json:"description" validate:"required,min=10"`
	ProjectType string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	Capacity    int    `json:"capacity" validate:"required,gte=1,lte=20"`
}

// ProjectUpdateRequest describes the payload for editing a project.
type ProjectUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=160"`
	Description *string `json:"description" validate:"omitempty,min=10"`
	Capacity    *int    `json:"capacity" validate:"omitempty,gte=1,lte=20"`
	Open        *bool   `json:"open"`
}

// ProjectListRequest defines filters for browsing the project catalogue.
type ProjectListRequest struct {
	Search      string `validate:"omitempty,max=160"`
	ProjectType string `validate:"omitempty,oneof=IDP UROP CAPSTONE"`
	FacultyID   *uint  `validate:"omitempty"`
	Open        *bool
	Page        int `validate:"omitempty,gte=1"`
	PageSize    int `validate:"omitempty,gte=1,lte=100"`
}

// ProjectResponse is the serialized representation returned to API clients.
type ProjectResponse struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ProjectType   string    `json:"project_type"`
	FacultyID     uint      `json:"faculty_id"`
	FacultyName   string    `json:"faculty_name,omitempty"`
	Capacity      int       `json:"capacity"`
	AssignedCount int64     `json:"assigned_count"`
	Open          bool      `json:"open"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProjectListResponse wraps a paginated project response.
type ProjectListResponse struct {
	Items      []ProjectResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewProjectResponse converts a model into a DTO.
func NewProjectResponse(model models.Project, assigned int64) ProjectResponse {
	return ProjectResponse{
		ID:            model.ID,
		Title:         model.Title,
		Description:   model.Description,
		ProjectType:   string(model.ProjectType),
		FacultyID:     model.FacultyID,
		FacultyName:   model.Faculty.Name,
		Capacity:      model.Capacity,
		AssignedCount: assigned,
		Open:          model.Open,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}
