package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// GroupCreateRequest describes the payload for forming a group.
type GroupCreateRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=80"`
	ProjectType string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
}

// GroupListRequest defines filters for listing groups.
type GroupListRequest struct {
	Search      string
	ProjectType string
	Status      string
	Page        int
	PageSize    int
}

// GroupMemberResponse serializes one membership row.
type GroupMemberResponse struct {
	StudentID uint      `json:"student_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// GroupResponse is the serialized representation returned to API clients.
type GroupResponse struct {
	ID          uint                  `json:"id"`
	Name        string                `json:"name"`
	ProjectType string                `json:"project_type"`
	LeaderID    uint                  `json:"leader_id"`
	Status      string                `json:"status"`
	Members     []GroupMemberResponse `json:"members"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// GroupListResponse wraps a paginated group response.
type GroupListResponse struct {
	Items      []GroupResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewGroupResponse converts a model into a DTO.
func NewGroupResponse(model models.Group) GroupResponse {
	members := make([]GroupMemberResponse, 0, len(model.Members))
	for _, member := range model.Members {
		members = append(members, GroupMemberResponse{
			StudentID: member.StudentID,
			Name:      member.Student.Name,
			Email:     member.Student.Email,
			Role:      member.Role,
			JoinedAt:  member.JoinedAt,
		})
	}

	return GroupResponse{
		ID:          model.ID,
		Name:        model.Name,
		ProjectType: string(model.ProjectType),
		LeaderID:    model.LeaderID,
		Status:      model.Status,
		Members:     members,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewGroupResponseSlice converts a slice of models into DTOs.
func NewGroupResponseSlice(groups []models.Group) []GroupResponse {
	responses := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, NewGroupResponse(group))
	}

	return responses
}
