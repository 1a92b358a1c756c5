package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
)

// WindowService manages time windows and resolves their state. Resolution is
// always computed from the stored dates at call time; nothing caches an
// "active" flag that could go stale.
type WindowService interface {
	List(ctx context.Context, payload dto.WindowListRequest) (dto.WindowListResponse, error)
	Get(ctx context.Context, id uint) (dto.WindowResponse, error)
	Create(ctx context.Context, payload dto.WindowCreateRequest) (dto.WindowResponse, error)
	Update(ctx context.Context, id uint, payload dto.WindowUpdateRequest) (dto.WindowResponse, error)
	Delete(ctx context.Context, id uint) error
	Status(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string) dto.WindowStatusResponse
	Resolve(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string) models.WindowStatus
}

type windowService struct {
	repo      repository.WindowRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewWindowService builds a new window service.
func NewWindowService(repo repository.WindowRepository, validate *validator.Validate, logger zerolog.Logger) WindowService {
	return &windowService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "window_service").Logger(),
		now:       time.Now,
	}
}

func (s *windowService) List(ctx context.Context, payload dto.WindowListRequest) (dto.WindowListResponse, error) {
	windows, total, err := s.repo.List(ctx, repository.WindowFilter{
		Kind:           payload.Kind,
		ProjectType:    payload.ProjectType,
		AssessmentType: payload.AssessmentType,
		Page:           payload.Page,
		PageSize:       payload.PageSize,
	})
	if err != nil {
		return dto.WindowListResponse{}, err
	}

	return dto.WindowListResponse{
		Items:      dto.NewWindowResponseSlice(windows),
		Pagination: dto.NewPaginationMeta(payload.Page, payload.PageSize, total),
	}, nil
}

func (s *windowService) Get(ctx context.Context, id uint) (dto.WindowResponse, error) {
	window, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WindowResponse{}, apperror.NotFoundf("window not found")
		}

		return dto.WindowResponse{}, err
	}

	return dto.NewWindowResponse(window), nil
}

func (s *windowService) Create(ctx context.Context, payload dto.WindowCreateRequest) (dto.WindowResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WindowResponse{}, apperror.Validation(err)
	}

	start, end, err := parseWindowRange(payload.StartDate, payload.EndDate)
	if err != nil {
		return dto.WindowResponse{}, err
	}

	kind := models.WindowKind(payload.Kind)
	if err := validateAssessmentForKind(kind, payload.AssessmentType); err != nil {
		return dto.WindowResponse{}, err
	}

	window := models.Window{
		Kind:           kind,
		ProjectType:    models.ProjectType(payload.ProjectType),
		AssessmentType: payload.AssessmentType,
		StartDate:      start,
		EndDate:        end,
	}

	if err := s.repo.Create(ctx, &window); err != nil {
		return dto.WindowResponse{}, err
	}

	s.logger.Info().
		Uint("window_id", window.ID).
		Str("kind", payload.Kind).
		Str("project_type", payload.ProjectType).
		Time("start", start).
		Time("end", end).
		Msg("window created")

	return dto.NewWindowResponse(window), nil
}

func (s *windowService) Update(ctx context.Context, id uint, payload dto.WindowUpdateRequest) (dto.WindowResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WindowResponse{}, apperror.Validation(err)
	}

	window, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WindowResponse{}, apperror.NotFoundf("window not found")
		}

		return dto.WindowResponse{}, err
	}

	start := window.StartDate
	end := window.EndDate
	updates := map[string]interface{}{}

	if payload.StartDate != nil {
		start, err = time.Parse(time.RFC3339, *payload.StartDate)
		if err != nil {
			return dto.WindowResponse{}, apperror.Validation(errors.New("invalid start date"))
		}
		updates["start_date"] = start
	}

	if payload.EndDate != nil {
		end, err = time.Parse(time.RFC3339, *payload.EndDate)
		if err != nil {
			return dto.WindowResponse{}, apperror.Validation(errors.New("invalid end date"))
		}
		updates["end_date"] = end
	}

	if !start.Before(end) {
		return dto.WindowResponse{}, apperror.Validation(errors.New("start date must be before end date"))
	}

	if len(updates) == 0 {
		return dto.NewWindowResponse(window), nil
	}

	window, err = s.repo.Update(ctx, id, updates)
	if err != nil {
		return dto.WindowResponse{}, err
	}

	s.logger.Info().Uint("window_id", id).Msg("window updated")

	return dto.NewWindowResponse(window), nil
}

func (s *windowService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("window not found")
		}
		return err
	}

	s.logger.Info().Uint("window_id", id).Msg("window deleted")
	return nil
}

func (s *windowService) Status(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string) dto.WindowStatusResponse {
	return dto.NewWindowStatusResponse(s.Resolve(ctx, kind, projectType, assessmentType), s.now())
}

// Resolve computes the tri-state answer for one window kind right now. A
// failed lookup never passes for closed: it reports unknown and the caller
// decides whether to fail the request.
func (s *windowService) Resolve(ctx context.Context, kind models.WindowKind, projectType models.ProjectType, assessmentType string) models.WindowStatus {
	reference := s.now()

	windows, err := s.repo.FindCovering(ctx, kind, projectType, assessmentType, reference)
	if err != nil {
		s.logger.Error().Err(err).
			Str("kind", string(kind)).
			Str("project_type", string(projectType)).
			Msg("window lookup failed")
		observability.RecordWindowResolution(string(kind), string(models.WindowStateUnknown))
		return models.WindowStatus{State: models.WindowStateUnknown, Reason: "window lookup failed"}
	}

	if len(windows) == 0 {
		observability.RecordWindowResolution(string(kind), string(models.WindowStateInactive))
		return models.WindowStatus{State: models.WindowStateInactive, Reason: "no window covers the current time"}
	}

	// Overlapping windows: FindCovering orders by latest end then latest
	// start, so the head wins.
	winner := windows[0]
	observability.RecordWindowResolution(string(kind), string(models.WindowStateActive))
	return models.WindowStatus{State: models.WindowStateActive, Window: &winner}
}

func parseWindowRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation(errors.New("invalid start date"))
	}

	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation(errors.New("invalid end date"))
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, apperror.Validation(errors.New("start date must be before end date"))
	}

	return start, end, nil
}

func validateAssessmentForKind(kind models.WindowKind, assessmentType string) error {
	switch kind {
	case models.WindowKindApplication:
		if assessmentType != "" {
			return apperror.Validation(errors.New("application windows do not carry an assessment type"))
		}
	case models.WindowKindInternalEvaluation:
		switch assessmentType {
		case models.AssessmentA1, models.AssessmentA2, models.AssessmentA3:
		default:
			return apperror.Validation(errors.New("internal evaluation windows require assessment type A1, A2 or A3"))
		}
	case models.WindowKindExternalEvaluation:
		if assessmentType != models.AssessmentExternal {
			return apperror.Validation(errors.New("external evaluation windows require assessment type external"))
		}
	}
	return nil
}
