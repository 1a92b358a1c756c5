package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/srm-ap/portal-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the pagination block from the request and the
// total row count.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}

// AdminUserListRequest defines filters for listing accounts.
type AdminUserListRequest struct {
	Page           int
	PageSize       int
	Search         string
	Role           string
	Status         string
	Eligibility    string
	Sort           string
	IncludeDeleted bool
}

// AdminUserResponse serializes account data for admin endpoints.
type AdminUserResponse struct {
	ID                  uint       `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	IsCoordinator       bool       `json:"is_coordinator"`
	IsExternalEvaluator bool       `json:"is_external_evaluator"`
	Eligibility         string     `json:"eligibility"`
	Status              string     `json:"status"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

// AdminUserListResponse wraps a paginated account response.
type AdminUserListResponse struct {
	Items      []AdminUserResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// AdminUserRoleRequest changes an account role; coordinator and external
// evaluator flags ride along as optional patches.
type AdminUserRoleRequest struct {
	Role                string `json:"role" validate:"required,oneof=student faculty coordinator admin"`
	IsCoordinator       *bool  `json:"is_coordinator"`
	IsExternalEvaluator *bool  `json:"is_external_evaluator"`
}

// AdminUserCreateRequest provisions an account ahead of its first login.
type AdminUserCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"omitempty,min=8"`
	Role        string `json:"role" validate:"required,oneof=student faculty coordinator admin"`
	Eligibility string `json:"eligibility" validate:"omitempty,oneof=IDP UROP CAPSTONE"`
}

// AdminUserUpdateRequest captures partial update payloads for accounts.
type AdminUserUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Eligibility *string `json:"eligibility" validate:"omitempty,oneof=IDP UROP CAPSTONE"`
	Status      *string `json:"status" validate:"omitempty,oneof=active archived"`
}

// NewAdminUserResponse converts a user model into a DTO.
func NewAdminUserResponse(user models.User) AdminUserResponse {
	var deletedAt *time.Time
	if user.DeletedAt.Valid {
		t := user.DeletedAt.Time
		deletedAt = &t
	}

	return AdminUserResponse{
		ID:                  user.ID,
		Name:                user.Name,
		Email:               user.Email,
		Role:                string(user.Role),
		IsCoordinator:       user.IsCoordinator,
		IsExternalEvaluator: user.IsExternalEvaluator,
		Eligibility:         string(user.Eligibility),
		Status:              user.Status,
		LastLoginAt:         user.LastLoginAt,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
		DeletedAt:           deletedAt,
	}
}

// NewAdminUserResponseSlice converts a slice of users into DTOs.
func NewAdminUserResponseSlice(users []models.User) []AdminUserResponse {
	responses := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewAdminUserResponse(user))
	}

	return responses
}

// AdminActivityListRequest defines filters for retrieving activity logs.
type AdminActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewAdminActivityResponse converts a model into an activity DTO.
func NewAdminActivityResponse(entry models.ActivityLog) AdminActivityResponse {
	return AdminActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}
