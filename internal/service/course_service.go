package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

// CourseService manages courses and their cohorts. All mutations are admin
// operations; reads are open to any authenticated user.
type CourseService interface {
	List(ctx context.Context, payload dto.CourseListRequest) (dto.CourseListResponse, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor AuthorizationContext, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor AuthorizationContext, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor AuthorizationContext, id uint) error

	AddCohort(ctx context.Context, actor AuthorizationContext, courseID uint, payload dto.CohortCreateRequest) (dto.CohortResponse, error)
	UpdateCohort(ctx context.Context, actor AuthorizationContext, id uint, payload dto.CohortUpdateRequest) (dto.CohortResponse, error)
	DeleteCohort(ctx context.Context, actor AuthorizationContext, id uint) error
}

type courseService struct {
	courses   repository.CourseRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCourseService builds a new course service.
func NewCourseService(courses repository.CourseRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		courses:   courses,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, payload dto.CourseListRequest) (dto.CourseListResponse, error) {
	filter := repository.CourseFilter{
		Search:   payload.Search,
		Semester: payload.Semester,
		Page:     payload.Page,
		PageSize: clampPageSize(payload.PageSize),
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	return dto.CourseListResponse{
		Items:      dto.NewCourseResponseSlice(courses),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, apperror.NotFoundf("course not found")
		}

		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, actor AuthorizationContext, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, apperror.Validation(err)
	}

	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if _, err := s.courses.GetByCode(ctx, code); err == nil {
		return dto.CourseResponse{}, apperror.AlreadyExistsf("a course with this code already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Code:          code,
		Title:         strings.TrimSpace(payload.Title),
		Semester:      payload.Semester,
		CoordinatorID: payload.CoordinatorID,
	}

	if err := s.courses.Create(ctx, &course); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.CourseResponse{}, apperror.AlreadyExistsf("a course with this code already exists")
		}

		s.logger.Error().Err(err).Str("code", code).Msg("failed to create course")
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Str("code", code).Msg("course created")
	s.recordCourseActivity(ctx, actor, "course_create", "course", course.ID)

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Update(ctx context.Context, actor AuthorizationContext, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, apperror.Validation(err)
	}

	updates := map[string]interface{}{}
	if payload.Title != nil {
		updates["title"] = strings.TrimSpace(*payload.Title)
	}
	if payload.Semester != nil {
		updates["semester"] = *payload.Semester
	}
	if payload.CoordinatorID != nil {
		updates["coordinator_id"] = *payload.CoordinatorID
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	course, err := s.courses.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, apperror.NotFoundf("course not found")
		}

		return dto.CourseResponse{}, err
	}

	s.recordCourseActivity(ctx, actor, "course_update", "course", id)

	return dto.NewCourseResponse(course), nil
}

// Delete removes the course and all its cohorts.
func (s *courseService) Delete(ctx context.Context, actor AuthorizationContext, id uint) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("course not found")
		}

		return err
	}

	s.logger.Info().Uint("course_id", id).Uint("actor_id", actor.UserID).Msg("course deleted")
	s.recordCourseActivity(ctx, actor, "course_delete", "course", id)

	return nil
}

func (s *courseService) AddCohort(ctx context.Context, actor AuthorizationContext, courseID uint, payload dto.CohortCreateRequest) (dto.CohortResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CohortResponse{}, apperror.Validation(err)
	}

	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CohortResponse{}, apperror.NotFoundf("course not found")
		}

		return dto.CohortResponse{}, err
	}

	cohort := models.Cohort{
		CourseID:     courseID,
		AcademicYear: strings.TrimSpace(payload.AcademicYear),
		ProjectType:  models.ProjectType(payload.ProjectType),
		Active:       payload.Active,
	}

	if err := s.courses.CreateCohort(ctx, &cohort); err != nil {
		s.logger.Error().Err(err).Uint("course_id", courseID).Msg("failed to create cohort")
		return dto.CohortResponse{}, err
	}

	s.recordCourseActivity(ctx, actor, "cohort_create", "cohort", cohort.ID)

	return dto.NewCohortResponse(cohort), nil
}

func (s *courseService) UpdateCohort(ctx context.Context, actor AuthorizationContext, id uint, payload dto.CohortUpdateRequest) (dto.CohortResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CohortResponse{}, apperror.Validation(err)
	}

	updates := map[string]interface{}{}
	if payload.AcademicYear != nil {
		updates["academic_year"] = strings.TrimSpace(*payload.AcademicYear)
	}
	if payload.Active != nil {
		updates["active"] = *payload.Active
	}

	if len(updates) == 0 {
		cohort, err := s.courses.GetCohortByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CohortResponse{}, apperror.NotFoundf("cohort not found")
			}

			return dto.CohortResponse{}, err
		}
		return dto.NewCohortResponse(cohort), nil
	}

	cohort, err := s.courses.UpdateCohort(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CohortResponse{}, apperror.NotFoundf("cohort not found")
		}

		return dto.CohortResponse{}, err
	}

	s.recordCourseActivity(ctx, actor, "cohort_update", "cohort", id)

	return dto.NewCohortResponse(cohort), nil
}

func (s *courseService) DeleteCohort(ctx context.Context, actor AuthorizationContext, id uint) error {
	if err := s.courses.DeleteCohort(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("cohort not found")
		}

		return err
	}

	s.recordCourseActivity(ctx, actor, "cohort_delete", "cohort", id)

	return nil
}

func (s *courseService) recordCourseActivity(ctx context.Context, actor AuthorizationContext, action, entity string, entityID uint) {
	id := entityID
	entry := ActivityEntry{
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityType: entity,
		EntityID:   &id,
	}

	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record course activity")
	}
}
