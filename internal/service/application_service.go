package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
)

// ApplicationService runs the application workflow: a group leader submits a
// ranked choice list during the application window, a coordinator approves or
// rejects it once.
type ApplicationService interface {
	Submit(ctx context.Context, authCtx AuthorizationContext, payload dto.ApplicationSubmitRequest) (dto.ApplicationResponse, error)
	Decide(ctx context.Context, authCtx AuthorizationContext, id uint, payload dto.ApplicationDecisionRequest) (dto.ApplicationResponse, error)
	Get(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.ApplicationResponse, error)
	MyApplication(ctx context.Context, authCtx AuthorizationContext, projectType string) (dto.ApplicationResponse, error)
	List(ctx context.Context, authCtx AuthorizationContext, payload dto.ApplicationListRequest) (dto.ApplicationListResponse, error)
}

type applicationService struct {
	applications  repository.ApplicationRepository
	groups        repository.GroupRepository
	projects      repository.ProjectRepository
	authz         AuthorizationService
	notifications NotificationService
	activity      ActivityRecorder
	retry         repository.RetryPolicy
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	minMembers    int
	now           func() time.Time
}

// NewApplicationService builds a new application service. minMembers is the
// smallest team allowed to apply; zero or negative disables the check.
func NewApplicationService(
	applications repository.ApplicationRepository,
	groups repository.GroupRepository,
	projects repository.ProjectRepository,
	authz AuthorizationService,
	notifications NotificationService,
	activity ActivityRecorder,
	validate *validator.Validate,
	minMembers int,
	logger zerolog.Logger,
) ApplicationService {
	return &applicationService{
		applications:  applications,
		groups:        groups,
		projects:      projects,
		authz:         authz,
		notifications: notifications,
		activity:      activity,
		retry:         repository.DefaultRetryPolicy,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "application_service").Logger(),
		tracer:        otel.Tracer("github.com/srm-ap/portal-api/internal/service/application"),
		minMembers:    minMembers,
		now:           time.Now,
	}
}

// Submit files the ranked choice list for the caller's group. Only the group
// leader may submit, only inside an open application window, and only once
// per group and project type.
func (s *applicationService) Submit(ctx context.Context, authCtx AuthorizationContext, payload dto.ApplicationSubmitRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ApplicationResponse{}, apperror.Validation(err)
	}

	projectType := models.ProjectType(payload.ProjectType)

	group, err := s.groups.GetByMember(ctx, authCtx.UserID, projectType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("you are not in a group for this project type")
		}

		return dto.ApplicationResponse{}, err
	}

	if group.LeaderID != authCtx.UserID {
		return dto.ApplicationResponse{}, apperror.Forbiddenf("only the group leader can submit the application")
	}

	if s.minMembers > 0 && len(group.Members) < s.minMembers {
		return dto.ApplicationResponse{}, apperror.BusinessRule(fmt.Sprintf("group needs at least %d members to apply", s.minMembers))
	}

	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindApplication, projectType, ""); err != nil {
		return dto.ApplicationResponse{}, err
	}

	if _, err := s.applications.GetByGroup(ctx, group.ID, projectType); err == nil {
		return dto.ApplicationResponse{}, apperror.AlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ApplicationResponse{}, err
	}

	choices := make([]models.ApplicationChoice, 0, len(payload.Choices))
	for index, projectID := range payload.Choices {
		project, err := s.projects.GetByID(ctx, projectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ApplicationResponse{}, apperror.Validation(fmt.Errorf("choice %d references an unknown project", index+1))
			}

			return dto.ApplicationResponse{}, err
		}
		if project.ProjectType != projectType {
			return dto.ApplicationResponse{}, apperror.BusinessRule("all chosen projects must belong to the applied project type")
		}
		if !project.Open {
			return dto.ApplicationResponse{}, apperror.BusinessRule(fmt.Sprintf("project %q is closed to new applications", project.Title))
		}

		choices = append(choices, models.ApplicationChoice{
			Rank:      index + 1,
			ProjectID: projectID,
		})
	}

	application := models.Application{
		GroupID:     group.ID,
		ProjectType: projectType,
		Status:      models.ApplicationStatusPending,
		Statement:   strings.TrimSpace(s.sanitizer.Sanitize(payload.Statement)),
		Choices:     choices,
	}

	if err := s.applications.Create(ctx, &application); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ApplicationResponse{}, apperror.AlreadySubmitted
		}

		s.logger.Error().Err(err).Uint("group_id", group.ID).Msg("failed to create application")
		return dto.ApplicationResponse{}, err
	}

	observability.RecordApplicationSubmitted(string(projectType))
	s.logger.Info().
		Uint("application_id", application.ID).
		Uint("group_id", group.ID).
		Str("project_type", string(projectType)).
		Int("choices", len(choices)).
		Msg("application submitted")

	created, err := s.applications.GetByID(ctx, application.ID)
	if err != nil {
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(created), nil
}

// Decide moves a pending application into a terminal state. Approval assigns
// one of the ranked projects and is refused when the project is closed or
// full. The write is version-guarded so two coordinators racing on the same
// application cannot both land a decision.
func (s *applicationService) Decide(ctx context.Context, authCtx AuthorizationContext, id uint, payload dto.ApplicationDecisionRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ApplicationResponse{}, apperror.Validation(err)
	}

	if !authCtx.Privileged() {
		return dto.ApplicationResponse{}, apperror.Forbiddenf("only coordinators can decide applications")
	}

	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("application not found")
		}

		return dto.ApplicationResponse{}, err
	}

	approving := payload.Decision == "approve"

	attrs := []attribute.KeyValue{
		attribute.Int("application.id", int(id)),
		attribute.String("application.decision", payload.Decision),
		attribute.Int("decider.id", int(authCtx.UserID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "applications.decide", trace.WithAttributes(attrs...))
	defer span.End()

	var assignedProjectID *uint
	if approving {
		if payload.ProjectID == nil {
			return dto.ApplicationResponse{}, apperror.Validation(errors.New("project_id is required when approving"))
		}
		// Choices are immutable after submission, so membership can be
		// checked on the copy loaded above.
		if !application.HasChoice(*payload.ProjectID) {
			return dto.ApplicationResponse{}, apperror.BusinessRule("assigned project must be one of the group's ranked choices")
		}

		project, err := s.projects.GetByID(spanCtx, *payload.ProjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ApplicationResponse{}, apperror.NotFoundf("project not found")
			}

			return dto.ApplicationResponse{}, err
		}
		if !project.Open {
			return dto.ApplicationResponse{}, apperror.BusinessRule("project is closed to new assignments")
		}

		assignedProjectID = payload.ProjectID
	}

	note := strings.TrimSpace(s.sanitizer.Sanitize(payload.Note))
	decidedAt := s.now().UTC()

	decided, err := s.applications.UpdateDecided(spanCtx, id, s.retry, func(current models.Application) (map[string]interface{}, error) {
		if current.Decided() {
			return nil, apperror.AlreadyDecided
		}

		updates := map[string]interface{}{
			"decided_by":    authCtx.UserID,
			"decided_at":    decidedAt,
			"decision_note": note,
		}

		if approving {
			// Capacity is re-counted on every retry attempt so a
			// concurrent approval onto the same project is seen here.
			assigned, err := s.projects.CountAssigned(spanCtx, *assignedProjectID)
			if err != nil {
				return nil, err
			}
			project, err := s.projects.GetByID(spanCtx, *assignedProjectID)
			if err != nil {
				return nil, err
			}
			if assigned >= int64(project.Capacity) {
				return nil, apperror.CapacityReached
			}

			updates["status"] = models.ApplicationStatusApproved
			updates["assigned_project_id"] = *assignedProjectID
		} else {
			updates["status"] = models.ApplicationStatusRejected
		}

		return updates, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			span.RecordError(err)
			observability.RecordLockConflict("application")
			s.logger.Warn().Uint("application_id", id).Msg("application decision lost optimistic lock race")
			return dto.ApplicationResponse{}, apperror.VersionConflict
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("application not found")
		}

		span.RecordError(err)
		return dto.ApplicationResponse{}, err
	}

	observability.RecordApplicationDecision(payload.Decision)
	s.logger.Info().
		Uint("application_id", id).
		Str("decision", payload.Decision).
		Uint("decided_by", authCtx.UserID).
		Msg("application decided")

	s.recordDecisionActivity(spanCtx, authCtx, decided, payload)
	s.notifyGroupMembers(spanCtx, decided, approving)

	return dto.NewApplicationResponse(decided), nil
}

func (s *applicationService) Get(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.ApplicationResponse, error) {
	application, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("application not found")
		}

		return dto.ApplicationResponse{}, err
	}

	if err := s.requireApplicationAccess(authCtx, application); err != nil {
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(application), nil
}

// MyApplication returns the application of the caller's group for one project
// type.
func (s *applicationService) MyApplication(ctx context.Context, authCtx AuthorizationContext, projectType string) (dto.ApplicationResponse, error) {
	parsed := models.ProjectType(projectType)
	if !models.ValidProjectType(parsed) {
		return dto.ApplicationResponse{}, apperror.Validation(errors.New("unknown project type"))
	}

	group, err := s.groups.GetByMember(ctx, authCtx.UserID, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("you are not in a group for this project type")
		}

		return dto.ApplicationResponse{}, err
	}

	application, err := s.applications.GetByGroup(ctx, group.ID, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, apperror.NotFoundf("no application submitted yet")
		}

		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(application), nil
}

// List is a coordinator view over all applications.
func (s *applicationService) List(ctx context.Context, authCtx AuthorizationContext, payload dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ApplicationListResponse{}, apperror.Validation(err)
	}

	if !authCtx.Privileged() && authCtx.Role != models.RoleFaculty {
		return dto.ApplicationListResponse{}, apperror.Forbiddenf("only staff can list applications")
	}

	filter := repository.ApplicationFilter{
		ProjectType: payload.ProjectType,
		Status:      payload.Status,
		GroupID:     payload.GroupID,
		ProjectID:   payload.ProjectID,
		Page:        payload.Page,
		PageSize:    clampPageSize(payload.PageSize),
	}

	applications, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return dto.ApplicationListResponse{}, err
	}

	return dto.ApplicationListResponse{
		Items:      dto.NewApplicationResponseSlice(applications),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

// requireApplicationAccess allows staff and members of the owning group.
func (s *applicationService) requireApplicationAccess(authCtx AuthorizationContext, application models.Application) error {
	if authCtx.Privileged() || authCtx.Role == models.RoleFaculty {
		return nil
	}

	for _, member := range application.Group.Members {
		if member.StudentID == authCtx.UserID {
			return nil
		}
	}

	return apperror.Forbiddenf("you are not a member of the applying group")
}

func (s *applicationService) recordDecisionActivity(ctx context.Context, authCtx AuthorizationContext, application models.Application, payload dto.ApplicationDecisionRequest) {
	entityID := application.ID
	entry := ActivityEntry{
		ActorID:    authCtx.UserID,
		ActorRole:  string(authCtx.Role),
		Action:     "application_" + payload.Decision,
		EntityType: "application",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"group_id":     application.GroupID,
			"project_type": string(application.ProjectType),
		},
	}
	if application.AssignedProjectID != nil {
		entry.Metadata["assigned_project_id"] = *application.AssignedProjectID
	}

	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Uint("application_id", application.ID).Msg("failed to record decision activity")
	}
}

func (s *applicationService) notifyGroupMembers(ctx context.Context, application models.Application, approved bool) {
	memberIDs := make([]uint, 0, len(application.Group.Members))
	for _, member := range application.Group.Members {
		memberIDs = append(memberIDs, member.StudentID)
	}
	if len(memberIDs) == 0 {
		return
	}

	message := fmt.Sprintf("Your %s application was rejected.", application.ProjectType)
	if approved {
		message = fmt.Sprintf("Your %s application was approved.", application.ProjectType)
	}

	if err := s.notifications.NotifyUsers(ctx, memberIDs, models.NotificationKindDecision, message); err != nil {
		s.logger.Warn().Err(err).Uint("application_id", application.ID).Msg("failed to notify group members")
	}
}
