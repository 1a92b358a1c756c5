package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
)

// AuthService authenticates users and manages the refresh token lifecycle.
// Refresh tokens are single use: the active JTI per user lives in Redis and
// rotates on every successful refresh, so a replayed token is rejected.
type AuthService interface {
	Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error)
	LoginWithGoogle(ctx context.Context, payload dto.GoogleLoginRequest) (dto.LoginResponse, error)
	Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPairResponse, error)
	Logout(ctx context.Context, userID uint) error
}

type authService struct {
	users         repository.UserRepository
	tokens        *TokenManager
	google        GoogleVerifier
	redis         *redis.Client
	validator     *validator.Validate
	logger        zerolog.Logger
	allowedDomain string
	now           func() time.Time
}

// NewAuthService builds a new auth service. allowedDomain, when non-empty,
// restricts Google first-logins to addresses under that domain.
func NewAuthService(users repository.UserRepository, tokens *TokenManager, google GoogleVerifier, redisClient *redis.Client, validate *validator.Validate, allowedDomain string, logger zerolog.Logger) AuthService {
	return &authService{
		users:         users,
		tokens:        tokens,
		google:        google,
		redis:         redisClient,
		validator:     validate,
		logger:        logger.With().Str("component", "auth_service").Logger(),
		allowedDomain: strings.ToLower(strings.TrimSpace(allowedDomain)),
		now:           time.Now,
	}
}

func refreshKey(userID uint) string {
	return fmt.Sprintf("auth:refresh:%d", userID)
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LoginResponse{}, apperror.Validation(err)
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordAuthAttempt("password", "failure")
			return dto.LoginResponse{}, apperror.InvalidCredentials
		}

		return dto.LoginResponse{}, err
	}

	if user.PasswordHash == "" {
		observability.RecordAuthAttempt("password", "failure")
		return dto.LoginResponse{}, apperror.InvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		observability.RecordAuthAttempt("password", "failure")
		return dto.LoginResponse{}, apperror.InvalidCredentials
	}

	if user.Status != models.UserStatusActive {
		observability.RecordAuthAttempt("password", "failure")
		return dto.LoginResponse{}, apperror.AccountDisabled
	}

	response, err := s.completeLogin(ctx, user)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	observability.RecordAuthAttempt("password", "success")
	return response, nil
}

func (s *authService) LoginWithGoogle(ctx context.Context, payload dto.GoogleLoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LoginResponse{}, apperror.Validation(err)
	}

	profile, err := s.google.Verify(ctx, payload.IDToken)
	if err != nil {
		observability.RecordAuthAttempt("google", "failure")
		return dto.LoginResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if s.allowedDomain != "" && !strings.HasSuffix(email, "@"+s.allowedDomain) {
		observability.RecordAuthAttempt("google", "failure")
		return dto.LoginResponse{}, apperror.Forbiddenf("email domain not allowed")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, err
		}

		// First login provisions a student account; eligibility stays
		// unset until a coordinator assigns it.
		user = models.User{
			Name:   profile.Name,
			Email:  email,
			Role:   models.RoleStudent,
			Status: models.UserStatusActive,
		}
		if err := s.users.Create(ctx, &user); err != nil {
			return dto.LoginResponse{}, err
		}

		s.logger.Info().
			Uint("user_id", user.ID).
			Str("email", email).
			Msg("account provisioned on first login")
	}

	if user.Status != models.UserStatusActive {
		observability.RecordAuthAttempt("google", "failure")
		return dto.LoginResponse{}, apperror.AccountDisabled
	}

	response, err := s.completeLogin(ctx, user)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	observability.RecordAuthAttempt("google", "success")
	return response, nil
}

// Refresh rotates the token pair. The presented JTI must match the stored
// one; a mismatch means the token was already spent, so the whole family is
// revoked and the client must log in again.
func (s *authService) Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPairResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenPairResponse{}, apperror.Validation(err)
	}

	userID, jti, err := s.tokens.ParseRefresh(payload.RefreshToken)
	if err != nil {
		observability.RecordAuthAttempt("refresh", "failure")
		return dto.TokenPairResponse{}, err
	}

	stored, err := s.redis.Get(ctx, refreshKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.RecordAuthAttempt("refresh", "failure")
			return dto.TokenPairResponse{}, apperror.TokenRevoked
		}

		return dto.TokenPairResponse{}, err
	}

	if stored != jti {
		if err := s.redis.Del(ctx, refreshKey(userID)).Err(); err != nil {
			s.logger.Error().Err(err).Uint("user_id", userID).Msg("revoking refresh family failed")
		}
		s.logger.Warn().Uint("user_id", userID).Msg("refresh token replay detected")
		observability.RecordAuthAttempt("refresh", "failure")
		return dto.TokenPairResponse{}, apperror.TokenRevoked
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordAuthAttempt("refresh", "failure")
			return dto.TokenPairResponse{}, apperror.AuthRequired
		}

		return dto.TokenPairResponse{}, err
	}

	if user.Status != models.UserStatusActive {
		observability.RecordAuthAttempt("refresh", "failure")
		return dto.TokenPairResponse{}, apperror.AccountDisabled
	}

	pair, newJTI, err := s.tokens.IssuePair(user)
	if err != nil {
		return dto.TokenPairResponse{}, err
	}

	if err := s.redis.Set(ctx, refreshKey(user.ID), newJTI, s.tokens.RefreshTTL()).Err(); err != nil {
		return dto.TokenPairResponse{}, err
	}

	observability.RecordAuthAttempt("refresh", "success")
	return pair, nil
}

func (s *authService) Logout(ctx context.Context, userID uint) error {
	if err := s.redis.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", userID).Msg("user logged out")
	return nil
}

func (s *authService) completeLogin(ctx context.Context, user models.User) (dto.LoginResponse, error) {
	pair, jti, err := s.tokens.IssuePair(user)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	if err := s.redis.Set(ctx, refreshKey(user.ID), jti, s.tokens.RefreshTTL()).Err(); err != nil {
		return dto.LoginResponse{}, err
	}

	loginAt := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, loginAt); err != nil {
		s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("updating last login failed")
	}
	user.LastLoginAt = &loginAt

	s.logger.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")

	return dto.LoginResponse{
		User:   dto.NewAuthUserResponse(user),
		Tokens: pair,
	}, nil
}
