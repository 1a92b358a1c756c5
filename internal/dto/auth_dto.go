package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// LoginRequest carries email and password credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// GoogleLoginRequest carries a Google ID token obtained by the frontend.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// RefreshRequest carries the refresh token being rotated.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPairResponse returns a freshly issued access/refresh token pair.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthUserResponse is the profile block embedded in login responses.
type AuthUserResponse struct {
	ID                  uint       `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	IsCoordinator       bool       `json:"is_coordinator"`
	IsExternalEvaluator bool       `json:"is_external_evaluator"`
	Eligibility         string     `json:"eligibility"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}

// LoginResponse bundles the authenticated profile with its token pair.
type LoginResponse struct {
	User   AuthUserResponse  `json:"user"`
	Tokens TokenPairResponse `json:"tokens"`
}

// NewAuthUserResponse converts a user model into the auth profile DTO.
func NewAuthUserResponse(user models.User) AuthUserResponse {
	return AuthUserResponse{
		ID:                  user.ID,
		Name:                user.Name,
		Email:               user.Email,
		Role:                string(user.Role),
		IsCoordinator:       user.IsCoordinator,
		IsExternalEvaluator: user.IsExternalEvaluator,
		Eligibility:         string(user.Eligibility),
		LastLoginAt:         user.LastLoginAt,
	}
}
