package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// ApplicationSubmitRequest carries a group's ranked project choices. Choices
// are ordered by preference; the first entry is rank 1.
type ApplicationSubmitRequest struct {
	ProjectType string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	Statement   string `json:"statement" validate:"omitempty,max=4000"`
	Choices     []uint `json:"choices" validate:"required,min=1,max=3,unique,dive,gt=0"`
}

// ApplicationDecisionRequest records an approval or rejection. ProjectID is
// required when approving and names the project the group is assigned to.
type ApplicationDecisionRequest struct {
	Decision  string `json:"decision" validate:"required,oneof=approve reject"`
	ProjectID *uint  `json:"project_id" validate:"omitempty,gt=0"`
	Note      string `json:"note" validate:"omitempty,max=2000"`
}

// ApplicationListRequest defines filters for the staff application listing.
type ApplicationListRequest struct {
	ProjectType string `validate:"omitempty,oneof=IDP UROP CAPSTONE"`
	Status      string `validate:"omitempty,oneof=pending approved rejected"`
	GroupID     *uint  `validate:"omitempty"`
	ProjectID   *uint  `validate:"omitempty"`
	Page        int    `validate:"omitempty,gte=1"`
	PageSize    int    `validate:"omitempty,gte=1,lte=100"`
}

// ApplicationChoiceResponse serializes one ranked entry.
type ApplicationChoiceResponse struct {
	Rank         int    `json:"rank"`
	ProjectID    uint   `json:"project_id"`
	ProjectTitle string `json:"project_title,omitempty"`
}

// ApplicationResponse is the serialized representation returned to API clients.
type ApplicationResponse struct {
	ID                uint                        `json:"id"`
	GroupID           uint                        `json:"group_id"`
	GroupName         string                      `json:"group_name,omitempty"`
	ProjectType       string                      `json:"project_type"`
	Status            string                      `json:"status"`
	Statement         string                      `json:"statement,omitempty"`
	Choices           []ApplicationChoiceResponse `json:"choices"`
	AssignedProjectID *uint                       `json:"assigned_project_id,omitempty"`
	DecidedBy         *uint                       `json:"decided_by,omitempty"`
	DecidedAt         *time.Time                  `json:"decided_at,omitempty"`
	DecisionNote      string                      `json:"decision_note,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// ApplicationListResponse wraps a paginated application response.
type ApplicationListResponse struct {
	Items      []ApplicationResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewApplicationResponse converts a model into a DTO.
func NewApplicationResponse(model models.Application) ApplicationResponse {
	choices := make([]ApplicationChoiceResponse, 0, len(model.Choices))
	for _, choice := range model.Choices {
		choices = append(choices, ApplicationChoiceResponse{
			Rank:         choice.Rank,
			ProjectID:    choice.ProjectID,
			ProjectTitle: choice.Project.Title,
		})
	}

	return ApplicationResponse{
		ID:                model.ID,
		GroupID:           model.GroupID,
		GroupName:         model.Group.Name,
		ProjectType:       string(model.ProjectType),
		Status:            string(model.Status),
		Statement:         model.Statement,
		Choices:           choices,
		AssignedProjectID: model.AssignedProjectID,
		DecidedBy:         model.DecidedBy,
		DecidedAt:         model.DecidedAt,
		DecisionNote:      model.DecisionNote,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewApplicationResponseSlice converts a slice of models into DTOs.
func NewApplicationResponseSlice(applications []models.Application) []ApplicationResponse {
	responses := make([]ApplicationResponse, 0, len(applications))
	for _, application := range applications {
		responses = append(responses, NewApplicationResponse(application))
	}

	return responses
}
