package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// CourseCreateRequest describes the payload for registering a course.
type CourseCreateRequest struct {
	Code          string `json:"code" validate:"required,min=3,max=20"`
	Title         string `json:"title" validate:"required,min=3,max=160"`
	Semester      int    `json:"semester" validate:"required,gte=1,lte=10"`
	CoordinatorID *uint  `json:"coordinator_id" validate:"omitempty,gt=0"`
}

// CourseUpdateRequest describes the payload for editing a course.
type CourseUpdateRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=3,max=160"`
	Semester      *int    `json:"semester" validate:"omitempty,gte=1,lte=10"`
	CoordinatorID *uint   `json:"coordinator_id" validate:"omitempty,gt=0"`
}

// CohortCreateRequest attaches a cohort to a course.
type CohortCreateRequest struct {
	AcademicYear string `json:"academic_year" validate:"required,min=4,max=9"`
	ProjectType  string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	Active       bool   `json:"active"`
}

// CohortUpdateRequest describes the payload for editing a cohort.
type CohortUpdateRequest struct {
	AcademicYear *string `json:"academic_year" validate:"omitempty,min=4,max=9"`
	Active       *bool   `json:"active"`
}

// CourseListRequest defines filters for browsing courses.
type CourseListRequest struct {
	Search   string `validate:"omitempty,max=160"`
	Semester int    `validate:"omitempty,gte=1,lte=10"`
	Page     int    `validate:"omitempty,gte=1"`
	PageSize int    `validate:"omitempty,gte=1,lte=100"`
}

// CohortResponse serializes one cohort row.
type CohortResponse struct {
	ID           uint      `json:"id"`
	CourseID     uint      `json:"course_id"`
	AcademicYear string    `json:"academic_year"`
	ProjectType  string    `json:"project_type"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CourseResponse is the serialized representation returned to API clients.
type CourseResponse struct {
	ID            uint             `json:"id"`
	Code          string           `json:"code"`
	Title         string           `json:"title"`
	Semester      int              `json:"semester"`
	CoordinatorID *uint            `json:"coordinator_id,omitempty"`
	Cohorts       []CohortResponse `json:"cohorts"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CourseListResponse wraps a paginated course response.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// NewCohortResponse converts a model into a DTO.
func NewCohortResponse(model models.Cohort) CohortResponse {
	return CohortResponse{
		ID:           model.ID,
		CourseID:     model.CourseID,
		AcademicYear: model.AcademicYear,
		ProjectType:  string(model.ProjectType),
		Active:       model.Active,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewCourseResponse converts a model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	cohorts := make([]CohortResponse, 0, len(model.Cohorts))
	for _, cohort := range model.Cohorts {
		cohorts = append(cohorts, NewCohortResponse(cohort))
	}

	return CourseResponse{
		ID:            model.ID,
		Code:          model.Code,
		Title:         model.Title,
		Semester:      model.Semester,
		CoordinatorID: model.CoordinatorID,
		Cohorts:       cohorts,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewCourseResponseSlice converts a slice of models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, NewCourseResponse(course))
	}

	return responses
}
