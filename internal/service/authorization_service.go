package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
)

// AuthorizationContext is the per-request security snapshot. It is built
// from the stored user row, not from token claims, so role or eligibility
// changes take effect on the next request rather than at token expiry.
type AuthorizationContext struct {
	UserID              uint
	Role                models.Role
	IsCoordinator       bool
	IsExternalEvaluator bool
	Eligibility         models.ProjectType
}

// Privileged reports whether window and eligibility gates are bypassed.
func (a AuthorizationContext) Privileged() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleCoordinator || a.IsCoordinator
}

// AuthorizationService answers "may this user do this, now?".
type AuthorizationService interface {
	BuildContext(ctx context.Context, userID uint) (AuthorizationContext, error)
	CanAccessProjectType(authCtx AuthorizationContext, projectType models.ProjectType) error
	CanPerformActionInWindow(ctx context.Context, authCtx AuthorizationContext, kind models.WindowKind, projectType models.ProjectType, assessmentType string) error
}

type authorizationService struct {
	users   repository.UserRepository
	windows WindowService
	logger  zerolog.Logger
}

// NewAuthorizationService builds a new authorization service.
func NewAuthorizationService(users repository.UserRepository, windows WindowService, logger zerolog.Logger) AuthorizationService {
	return &authorizationService{
		users:   users,
		windows: windows,
		logger:  logger.With().Str("component", "authorization_service").Logger(),
	}
}

// BuildContext loads the live user row. Archived and deleted accounts yield
// errors so a stale token cannot outlive its account.
func (s *authorizationService) BuildContext(ctx context.Context, userID uint) (AuthorizationContext, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthorizationContext{}, apperror.AuthRequired
		}

		return AuthorizationContext{}, err
	}

	if user.Status != models.UserStatusActive {
		return AuthorizationContext{}, apperror.AccountDisabled
	}

	return AuthorizationContext{
		UserID:              user.ID,
		Role:                user.Role,
		IsCoordinator:       user.IsCoordinator,
		IsExternalEvaluator: user.IsExternalEvaluator,
		Eligibility:         user.Eligibility,
	}, nil
}

func (s *authorizationService) CanAccessProjectType(authCtx AuthorizationContext, projectType models.ProjectType) error {
	if authCtx.Privileged() {
		return nil
	}

	if authCtx.Role == models.RoleStudent && authCtx.Eligibility != projectType {
		return apperror.NotEligible
	}

	return nil
}

// CanPerformActionInWindow gates an action on eligibility and on the window
// for its kind being active right now. Admins and coordinators bypass both
// gates. An unknown window state fails the request rather than letting it
// through.
func (s *authorizationService) CanPerformActionInWindow(ctx context.Context, authCtx AuthorizationContext, kind models.WindowKind, projectType models.ProjectType, assessmentType string) error {
	if authCtx.Privileged() {
		observability.RecordGateDecision(string(kind), "bypass")
		return nil
	}

	if err := s.CanAccessProjectType(authCtx, projectType); err != nil {
		observability.RecordGateDecision(string(kind), "not_eligible")
		return err
	}

	status := s.windows.Resolve(ctx, kind, projectType, assessmentType)
	switch status.State {
	case models.WindowStateActive:
		observability.RecordGateDecision(string(kind), "allowed")
		return nil
	case models.WindowStateUnknown:
		s.logger.Warn().
			Uint("user_id", authCtx.UserID).
			Str("kind", string(kind)).
			Str("project_type", string(projectType)).
			Msg("window state unknown, refusing action")
		observability.RecordGateDecision(string(kind), "unknown")
		return apperror.WindowUnknown
	default:
		observability.RecordGateDecision(string(kind), "closed")
		return apperror.WindowClosed
	}
}
