package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

// ProjectService manages the faculty project catalogue.
type ProjectService interface {
	Propose(ctx context.Context, authCtx AuthorizationContext, payload dto.ProjectCreateRequest) (dto.ProjectResponse, error)
	Update(ctx context.Context, authCtx AuthorizationContext, id uint, payload dto.ProjectUpdateRequest) (dto.ProjectResponse, error)
	Close(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.ProjectResponse, error)
	Get(ctx context.Context, id uint) (dto.ProjectResponse, error)
	List(ctx context.Context, payload dto.ProjectListRequest) (dto.ProjectListResponse, error)
}

type projectService struct {
	projects  repository.ProjectRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewProjectService builds a new project service.
func NewProjectService(projects repository.ProjectRepository, validate *validator.Validate, logger zerolog.Logger) ProjectService {
	return &projectService{
		projects:  projects,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "project_service").Logger(),
	}
}

// Propose creates a project owned by the calling faculty member. Coordinators
// and admins may also propose, for example on behalf of visiting faculty.
func (s *projectService) Propose(ctx context.Context, authCtx AuthorizationContext, payload dto.ProjectCreateRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectResponse{}, apperror.Validation(err)
	}

	if authCtx.Role != models.RoleFaculty && !authCtx.Privileged() {
		return dto.ProjectResponse{}, apperror.Forbiddenf("only faculty can propose projects")
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	description := strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))
	if title == "" || description == "" {
		return dto.ProjectResponse{}, apperror.Validation(errors.New("title and description must not be empty after sanitization"))
	}

	project := models.Project{
		Title:       title,
		Description: description,
		ProjectType: models.ProjectType(payload.ProjectType),
		FacultyID:   authCtx.UserID,
		Capacity:    payload.Capacity,
		Open:        true,
	}

	if err := s.projects.Create(ctx, &project); err != nil {
		s.logger.Error().Err(err).Uint("faculty_id", authCtx.UserID).Msg("failed to create project")
		return dto.ProjectResponse{}, err
	}

	s.logger.Info().
		Uint("project_id", project.ID).
		Uint("faculty_id", authCtx.UserID).
		Str("project_type", payload.ProjectType).
		Msg("project proposed")

	return dto.NewProjectResponse(project, 0), nil
}

// Update patches a project. Only the owning faculty member or a privileged
// user may edit it.
func (s *projectService) Update(ctx context.Context, authCtx AuthorizationContext, id uint, payload dto.ProjectUpdateRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectResponse{}, apperror.Validation(err)
	}

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, apperror.NotFoundf("project not found")
		}

		return dto.ProjectResponse{}, err
	}

	if err := s.requireOwnership(authCtx, project); err != nil {
		return dto.ProjectResponse{}, err
	}

	updates := map[string]interface{}{}
	if payload.Title != nil {
		title := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
		if title == "" {
			return dto.ProjectResponse{}, apperror.Validation(errors.New("title must not be empty after sanitization"))
		}
		updates["title"] = title
	}
	if payload.Description != nil {
		description := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
		if description == "" {
			return dto.ProjectResponse{}, apperror.Validation(errors.New("description must not be empty after sanitization"))
		}
		updates["description"] = description
	}
	if payload.Capacity != nil {
		assigned, err := s.projects.CountAssigned(ctx, id)
		if err != nil {
			return dto.ProjectResponse{}, err
		}
		if int64(*payload.Capacity) < assigned {
			return dto.ProjectResponse{}, apperror.BusinessRule("capacity cannot drop below the number of groups already assigned")
		}
		updates["capacity"] = *payload.Capacity
	}
	if payload.Open != nil {
		updates["open"] = *payload.Open
	}

	if len(updates) == 0 {
		assigned, err := s.projects.CountAssigned(ctx, id)
		if err != nil {
			return dto.ProjectResponse{}, err
		}
		return dto.NewProjectResponse(project, assigned), nil
	}

	updated, err := s.projects.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, apperror.NotFoundf("project not found")
		}

		s.logger.Error().Err(err).Uint("project_id", id).Msg("failed to update project")
		return dto.ProjectResponse{}, err
	}

	assigned, err := s.projects.CountAssigned(ctx, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	s.logger.Info().Uint("project_id", id).Uint("user_id", authCtx.UserID).Msg("project updated")

	return dto.NewProjectResponse(updated, assigned), nil
}

// Close stops a project from accepting new applications. Existing approved
// assignments are unaffected.
func (s *projectService) Close(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.ProjectResponse, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, apperror.NotFoundf("project not found")
		}

		return dto.ProjectResponse{}, err
	}

	if err := s.requireOwnership(authCtx, project); err != nil {
		return dto.ProjectResponse{}, err
	}

	updated, err := s.projects.Update(ctx, id, map[string]interface{}{"open": false})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, apperror.NotFoundf("project not found")
		}

		return dto.ProjectResponse{}, err
	}

	assigned, err := s.projects.CountAssigned(ctx, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	s.logger.Info().Uint("project_id", id).Uint("user_id", authCtx.UserID).Msg("project closed")

	return dto.NewProjectResponse(updated, assigned), nil
}

func (s *projectService) Get(ctx context.Context, id uint) (dto.ProjectResponse, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, apperror.NotFoundf("project not found")
		}

		return dto.ProjectResponse{}, err
	}

	assigned, err := s.projects.CountAssigned(ctx, id)
	if err != nil {
		return dto.ProjectResponse{}, err
	}

	return dto.NewProjectResponse(project, assigned), nil
}

func (s *projectService) List(ctx context.Context, payload dto.ProjectListRequest) (dto.ProjectListResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProjectListResponse{}, apperror.Validation(err)
	}

	filter := repository.ProjectFilter{
		Search:      payload.Search,
		ProjectType: payload.ProjectType,
		FacultyID:   payload.FacultyID,
		Open:        payload.Open,
		Page:        payload.Page,
		PageSize:    clampPageSize(payload.PageSize),
	}

	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return dto.ProjectListResponse{}, err
	}

	items := make([]dto.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		assigned, err := s.projects.CountAssigned(ctx, project.ID)
		if err != nil {
			return dto.ProjectListResponse{}, err
		}
		items = append(items, dto.NewProjectResponse(project, assigned))
	}

	return dto.ProjectListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *projectService) requireOwnership(authCtx AuthorizationContext, project models.Project) error {
	if authCtx.Privileged() {
		return nil
	}

	if authCtx.Role == models.RoleFaculty && project.FacultyID == authCtx.UserID {
		return nil
	}

	return apperror.Forbiddenf("only the owning faculty member can modify this project")
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}
