package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

// AdminUserService manages accounts on behalf of administrators. Every
// destructive path runs the last-admin guard so the portal can never lock
// out its final administrator.
type AdminUserService interface {
	List(ctx context.Context, payload dto.AdminUserListRequest) (dto.AdminUserListResponse, error)
	Get(ctx context.Context, id uint) (dto.AdminUserResponse, error)
	Create(ctx context.Context, actor AuthorizationContext, payload dto.AdminUserCreateRequest) (dto.AdminUserResponse, error)
	Update(ctx context.Context, actor AuthorizationContext, id uint, payload dto.AdminUserUpdateRequest) (dto.AdminUserResponse, error)
	ChangeRole(ctx context.Context, actor AuthorizationContext, id uint, payload dto.AdminUserRoleRequest) (dto.AdminUserResponse, error)
	SoftDelete(ctx context.Context, actor AuthorizationContext, id uint) error
	HardDelete(ctx context.Context, actor AuthorizationContext, id uint) error
	Restore(ctx context.Context, actor AuthorizationContext, id uint) (dto.AdminUserResponse, error)
}

type adminUserService struct {
	users     repository.UserRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminUserService builds a new admin user service.
func NewAdminUserService(users repository.UserRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) AdminUserService {
	return &adminUserService{
		users:     users,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "admin_user_service").Logger(),
	}
}

func (s *adminUserService) List(ctx context.Context, payload dto.AdminUserListRequest) (dto.AdminUserListResponse, error) {
	filter := repository.UserFilter{
		Search:         payload.Search,
		Role:           payload.Role,
		Status:         payload.Status,
		Eligibility:    payload.Eligibility,
		Sort:           payload.Sort,
		Page:           payload.Page,
		PageSize:       clampPageSize(payload.PageSize),
		IncludeDeleted: payload.IncludeDeleted,
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return dto.AdminUserListResponse{}, err
	}

	return dto.AdminUserListResponse{
		Items:      dto.NewAdminUserResponseSlice(users),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *adminUserService) Get(ctx context.Context, id uint) (dto.AdminUserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("user not found")
		}

		return dto.AdminUserResponse{}, err
	}

	return dto.NewAdminUserResponse(user), nil
}

// Create provisions an account ahead of its first login. Password is
// optional; accounts without one can only sign in through Google.
func (s *adminUserService) Create(ctx context.Context, actor AuthorizationContext, payload dto.AdminUserCreateRequest) (dto.AdminUserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AdminUserResponse{}, apperror.Validation(err)
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dto.AdminUserResponse{}, apperror.AlreadyExistsf("an account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AdminUserResponse{}, err
	}

	user := models.User{
		Name:        strings.TrimSpace(payload.Name),
		Email:       email,
		Role:        models.Role(payload.Role),
		Eligibility: models.ProjectType(payload.Eligibility),
		Status:      models.UserStatusActive,
	}

	if payload.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if err != nil {
			return dto.AdminUserResponse{}, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AdminUserResponse{}, apperror.AlreadyExistsf("an account with this email already exists")
		}

		s.logger.Error().Err(err).Str("email", email).Msg("failed to create user")
		return dto.AdminUserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", payload.Role).Msg("user created")
	s.recordUserActivity(ctx, actor, "user_create", user.ID, map[string]interface{}{"role": payload.Role})

	return dto.NewAdminUserResponse(user), nil
}

func (s *adminUserService) Update(ctx context.Context, actor AuthorizationContext, id uint, payload dto.AdminUserUpdateRequest) (dto.AdminUserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AdminUserResponse{}, apperror.Validation(err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("user not found")
		}

		return dto.AdminUserResponse{}, err
	}

	updates := map[string]interface{}{}
	if payload.Name != nil {
		updates["name"] = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if email != user.Email {
			if _, err := s.users.GetByEmail(ctx, email); err == nil {
				return dto.AdminUserResponse{}, apperror.AlreadyExistsf("an account with this email already exists")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.AdminUserResponse{}, err
			}
		}
		updates["email"] = email
	}
	if payload.Eligibility != nil {
		updates["eligibility"] = *payload.Eligibility
	}
	if payload.Status != nil {
		if *payload.Status != models.UserStatusActive {
			if err := s.guardLastAdmin(ctx, user); err != nil {
				return dto.AdminUserResponse{}, err
			}
		}
		updates["status"] = *payload.Status
	}

	if len(updates) == 0 {
		return dto.NewAdminUserResponse(user), nil
	}

	updated, err := s.users.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("user not found")
		}

		return dto.AdminUserResponse{}, err
	}

	s.recordUserActivity(ctx, actor, "user_update", id, nil)

	return dto.NewAdminUserResponse(updated), nil
}

// ChangeRole moves an account to a new role and patches the coordinator and
// external evaluator flags. Demoting the last active admin is refused.
func (s *adminUserService) ChangeRole(ctx context.Context, actor AuthorizationContext, id uint, payload dto.AdminUserRoleRequest) (dto.AdminUserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AdminUserResponse{}, apperror.Validation(err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("user not found")
		}

		return dto.AdminUserResponse{}, err
	}

	newRole := models.Role(payload.Role)
	if newRole != models.RoleAdmin {
		if err := s.guardLastAdmin(ctx, user); err != nil {
			return dto.AdminUserResponse{}, err
		}
	}

	updates := map[string]interface{}{"role": payload.Role}
	if payload.IsCoordinator != nil {
		updates["is_coordinator"] = *payload.IsCoordinator
	}
	if payload.IsExternalEvaluator != nil {
		updates["is_external_evaluator"] = *payload.IsExternalEvaluator
	}

	updated, err := s.users.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("user not found")
		}

		return dto.AdminUserResponse{}, err
	}

	s.logger.Info().
		Uint("user_id", id).
		Str("from", string(user.Role)).
		Str("to", payload.Role).
		Uint("actor_id", actor.UserID).
		Msg("user role changed")
	s.recordUserActivity(ctx, actor, "user_role_change", id, map[string]interface{}{
		"from": string(user.Role),
		"to":   payload.Role,
	})

	return dto.NewAdminUserResponse(updated), nil
}

// SoftDelete archives an account and hides it behind the soft-delete scope.
// Groups, applications and evaluations referencing it stay intact.
func (s *adminUserService) SoftDelete(ctx context.Context, actor AuthorizationContext, id uint) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("user not found")
		}

		return err
	}

	if err := s.guardLastAdmin(ctx, user); err != nil {
		return err
	}

	if err := s.users.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("user not found")
		}

		return err
	}

	s.logger.Info().Uint("user_id", id).Uint("actor_id", actor.UserID).Msg("user soft deleted")
	s.recordUserActivity(ctx, actor, "user_soft_delete", id, nil)

	return nil
}

// HardDelete removes the row permanently. It accepts already-archived
// accounts; the last-admin guard only applies while the target is still an
// active admin.
func (s *adminUserService) HardDelete(ctx context.Context, actor AuthorizationContext, id uint) error {
	user, err := s.users.GetByID(ctx, id)
	if err == nil {
		if err := s.guardLastAdmin(ctx, user); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.users.HardDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("user not found")
		}

		return err
	}

	s.logger.Info().Uint("user_id", id).Uint("actor_id", actor.UserID).Msg("user hard deleted")
	s.recordUserActivity(ctx, actor, "user_hard_delete", id, nil)

	return nil
}

func (s *adminUserService) Restore(ctx context.Context, actor AuthorizationContext, id uint) (dto.AdminUserResponse, error) {
	user, err := s.users.Restore(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminUserResponse{}, apperror.NotFoundf("no archived user to restore")
		}

		return dto.AdminUserResponse{}, err
	}

	s.logger.Info().Uint("user_id", id).Uint("actor_id", actor.UserID).Msg("user restored")
	s.recordUserActivity(ctx, actor, "user_restore", id, nil)

	return dto.NewAdminUserResponse(user), nil
}

// guardLastAdmin refuses mutations that would leave the portal without an
// active administrator.
func (s *adminUserService) guardLastAdmin(ctx context.Context, target models.User) error {
	if target.Role != models.RoleAdmin || target.Status != models.UserStatusActive {
		return nil
	}

	admins, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperror.LastAdmin
	}

	return nil
}

func (s *adminUserService) recordUserActivity(ctx context.Context, actor AuthorizationContext, action string, targetID uint, metadata map[string]interface{}) {
	entry := ActivityEntry{
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityType: "user",
		EntityID:   &targetID,
		Metadata:   metadata,
	}

	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Uint("target_id", targetID).Msg("failed to record user activity")
	}
}
