package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

// GroupService manages team formation. Membership changes are gated by the
// application window and freeze once the group has applied.
type GroupService interface {
	Create(ctx context.Context, userID uint, payload dto.GroupCreateRequest) (dto.GroupResponse, error)
	Join(ctx context.Context, userID, groupID uint) (dto.GroupResponse, error)
	Leave(ctx context.Context, userID, groupID uint) error
	Disband(ctx context.Context, userID, groupID uint) error
	Get(ctx context.Context, id uint) (dto.GroupResponse, error)
	MyGroup(ctx context.Context, userID uint, projectType models.ProjectType) (dto.GroupResponse, error)
	List(ctx context.Context, payload dto.GroupListRequest) (dto.GroupListResponse, error)
}

type groupService struct {
	groups       repository.GroupRepository
	applications repository.ApplicationRepository
	authz        AuthorizationService
	validator    *validator.Validate
	logger       zerolog.Logger
	maxMembers   int
}

// NewGroupService builds a new group service. maxMembers caps group size;
// zero or negative disables the cap.
func NewGroupService(groups repository.GroupRepository, applications repository.ApplicationRepository, authz AuthorizationService, validate *validator.Validate, maxMembers int, logger zerolog.Logger) GroupService {
	return &groupService{
		groups:       groups,
		applications: applications,
		authz:        authz,
		validator:    validate,
		logger:       logger.With().Str("component", "group_service").Logger(),
		maxMembers:   maxMembers,
	}
}

func (s *groupService) Create(ctx context.Context, userID uint, payload dto.GroupCreateRequest) (dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, apperror.Validation(err)
	}

	authCtx, err := s.authz.BuildContext(ctx, userID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	if authCtx.Role != models.RoleStudent {
		return dto.GroupResponse{}, apperror.Forbiddenf("only students can form groups")
	}

	projectType := models.ProjectType(payload.ProjectType)
	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindApplication, projectType, ""); err != nil {
		return dto.GroupResponse{}, err
	}

	if _, err := s.groups.GetByMember(ctx, userID, projectType); err == nil {
		return dto.GroupResponse{}, apperror.AlreadyExistsf("already in a group for this project type")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GroupResponse{}, err
	}

	group := models.Group{
		Name:        payload.Name,
		ProjectType: projectType,
		LeaderID:    userID,
		Status:      models.GroupStatusActive,
	}
	if err := s.groups.CreateWithLeader(ctx, &group); err != nil {
		return dto.GroupResponse{}, err
	}

	s.logger.Info().
		Uint("group_id", group.ID).
		Uint("leader_id", userID).
		Str("project_type", payload.ProjectType).
		Msg("group created")

	created, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(created), nil
}

func (s *groupService) Join(ctx context.Context, userID, groupID uint) (dto.GroupResponse, error) {
	authCtx, err := s.authz.BuildContext(ctx, userID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	if authCtx.Role != models.RoleStudent {
		return dto.GroupResponse{}, apperror.Forbiddenf("only students can join groups")
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, apperror.NotFoundf("group not found")
		}

		return dto.GroupResponse{}, err
	}

	if group.Status != models.GroupStatusActive {
		return dto.GroupResponse{}, apperror.BusinessRule("group is not active")
	}

	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindApplication, group.ProjectType, ""); err != nil {
		return dto.GroupResponse{}, err
	}

	if group.HasMember(userID) {
		return dto.GroupResponse{}, apperror.BusinessRule("already a member of this group")
	}

	if _, err := s.groups.GetByMember(ctx, userID, group.ProjectType); err == nil {
		return dto.GroupResponse{}, apperror.AlreadyExistsf("already in a group for this project type")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GroupResponse{}, err
	}

	if err := s.requireNoApplication(ctx, group); err != nil {
		return dto.GroupResponse{}, err
	}

	if s.maxMembers > 0 && len(group.Members) >= s.maxMembers {
		return dto.GroupResponse{}, apperror.BusinessRule("group is full")
	}

	member := models.GroupMember{GroupID: group.ID, StudentID: userID, Role: models.GroupRoleMember}
	if err := s.groups.AddMember(ctx, &member); err != nil {
		return dto.GroupResponse{}, err
	}

	s.logger.Info().Uint("group_id", group.ID).Uint("student_id", userID).Msg("member joined group")

	joined, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(joined), nil
}

func (s *groupService) Leave(ctx context.Context, userID, groupID uint) error {
	authCtx, err := s.authz.BuildContext(ctx, userID)
	if err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("group not found")
		}

		return err
	}

	if !group.HasMember(userID) {
		return apperror.NotFoundf("not a member of this group")
	}

	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindApplication, group.ProjectType, ""); err != nil {
		return err
	}

	if err := s.requireNoApplication(ctx, group); err != nil {
		return err
	}

	if group.LeaderID == userID {
		if len(group.Members) > 1 {
			return apperror.BusinessRule("leader cannot leave while the group has members")
		}

		// Last member out: the group folds.
		if err := s.groups.RemoveMember(ctx, group.ID, userID); err != nil {
			return err
		}
		if _, err := s.groups.Update(ctx, group.ID, map[string]interface{}{"status": models.GroupStatusDisbanded}); err != nil {
			return err
		}

		s.logger.Info().Uint("group_id", group.ID).Msg("group disbanded, leader left")
		return nil
	}

	if err := s.groups.RemoveMember(ctx, group.ID, userID); err != nil {
		return err
	}

	s.logger.Info().Uint("group_id", group.ID).Uint("student_id", userID).Msg("member left group")
	return nil
}

func (s *groupService) Disband(ctx context.Context, userID, groupID uint) error {
	authCtx, err := s.authz.BuildContext(ctx, userID)
	if err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("group not found")
		}

		return err
	}

	if group.LeaderID != userID && !authCtx.Privileged() {
		return apperror.Forbidden
	}

	if group.Status != models.GroupStatusActive {
		return apperror.BusinessRule("group is not active")
	}

	if !authCtx.Privileged() {
		if err := s.requireNoApplication(ctx, group); err != nil {
			return err
		}
	}

	if _, err := s.groups.Update(ctx, group.ID, map[string]interface{}{"status": models.GroupStatusDisbanded}); err != nil {
		return err
	}

	s.logger.Info().Uint("group_id", group.ID).Uint("actor_id", userID).Msg("group disbanded")
	return nil
}

func (s *groupService) Get(ctx context.Context, id uint) (dto.GroupResponse, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, apperror.NotFoundf("group not found")
		}

		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(group), nil
}

func (s *groupService) MyGroup(ctx context.Context, userID uint, projectType models.ProjectType) (dto.GroupResponse, error) {
	group, err := s.groups.GetByMember(ctx, userID, projectType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, apperror.NotFoundf("no group for this project type")
		}

		return dto.GroupResponse{}, err
	}

	full, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(full), nil
}

func (s *groupService) List(ctx context.Context, payload dto.GroupListRequest) (dto.GroupListResponse, error) {
	groups, total, err := s.groups.List(ctx, repository.GroupFilter{
		Search:      payload.Search,
		ProjectType: payload.ProjectType,
		Status:      payload.Status,
		Page:        payload.Page,
		PageSize:    payload.PageSize,
	})
	if err != nil {
		return dto.GroupListResponse{}, err
	}

	return dto.GroupListResponse{
		Items:      dto.NewGroupResponseSlice(groups),
		Pagination: dto.NewPaginationMeta(payload.Page, payload.PageSize, total),
	}, nil
}

// requireNoApplication rejects membership changes once the group has a
// submitted application on file, whatever its state.
func (s *groupService) requireNoApplication(ctx context.Context, group models.Group) error {
	_, err := s.applications.GetByGroup(ctx, group.ID, group.ProjectType)
	if err == nil {
		return apperror.BusinessRule("group membership is frozen after applying")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
