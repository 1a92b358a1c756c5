package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

const dashboardCacheKey = "dashboard:summary"

// DashboardService aggregates portal state for the dashboard endpoints. The
// staff summary is expensive and rides a Redis cache-aside with a short TTL;
// the per-student overview is cheap and always live.
type DashboardService interface {
	Summary(ctx context.Context) (dto.DashboardResponse, error)
	StudentOverview(ctx context.Context, authCtx AuthorizationContext) (dto.StudentOverviewResponse, error)
}

type dashboardService struct {
	analytics    repository.AnalyticsRepository
	applications repository.ApplicationRepository
	evaluations  repository.EvaluationRepository
	windows      repository.WindowRepository
	groups       repository.GroupRepository
	resolver     WindowService
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewDashboardService builds a new dashboard service.
func NewDashboardService(
	analytics repository.AnalyticsRepository,
	applications repository.ApplicationRepository,
	evaluations repository.EvaluationRepository,
	windows repository.WindowRepository,
	groups repository.GroupRepository,
	resolver WindowService,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) DashboardService {
	return &dashboardService{
		analytics:    analytics,
		applications: applications,
		evaluations:  evaluations,
		windows:      windows,
		groups:       groups,
		resolver:     resolver,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "dashboard_service").Logger(),
		now:          time.Now,
	}
}

func (s *dashboardService) Summary(ctx context.Context) (dto.DashboardResponse, error) {
	tracer := otel.Tracer("github.com/srm-ap/portal-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.aggregate")
	span.SetAttributes(attribute.String("dashboard.cache_key", dashboardCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, dashboardCacheKey).Result()
		if err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
			span.RecordError(err)
		}
	}

	summary, err := s.buildSummary(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dashboard_aggregate_failed")
		return dto.DashboardResponse{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *dashboardService) buildSummary(ctx context.Context) (dto.DashboardResponse, error) {
	usersByRole, err := s.analytics.CountUsersByRole(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	activeGroups, err := s.analytics.CountActiveGroups(ctx, "")
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	openProjects, err := s.analytics.CountOpenProjects(ctx, "")
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	var unassigned int64
	for _, projectType := range []models.ProjectType{models.ProjectTypeIDP, models.ProjectTypeUROP, models.ProjectTypeCapstone} {
		count, err := s.analytics.CountUnassignedStudents(ctx, projectType)
		if err != nil {
			return dto.DashboardResponse{}, err
		}
		unassigned += count
	}

	applicationCounts, err := s.applications.CountByStatus(ctx, "")
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	finalized, err := s.evaluations.CountFinalized(ctx, "")
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	activeWindows, err := s.windows.ListActive(ctx, s.now().UTC())
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	roleCounts := make(map[string]int64, len(usersByRole))
	for role, count := range usersByRole {
		roleCounts[string(role)] = count
	}

	return dto.DashboardResponse{
		UsersByRole:          roleCounts,
		ActiveGroups:         activeGroups,
		OpenProjects:         openProjects,
		UnassignedStudents:   unassigned,
		PendingApplications:  applicationCounts[models.ApplicationStatusPending],
		ApprovedApplications: applicationCounts[models.ApplicationStatusApproved],
		RejectedApplications: applicationCounts[models.ApplicationStatusRejected],
		FinalizedEvaluations: finalized,
		ActiveWindows:        dto.NewWindowResponseSlice(activeWindows),
		GeneratedAt:          s.now().UTC(),
	}, nil
}

// StudentOverview assembles the caller's own slice of the portal. Absent
// pieces are simply omitted; a student with no group yet still gets the
// window state for their track.
func (s *dashboardService) StudentOverview(ctx context.Context, authCtx AuthorizationContext) (dto.StudentOverviewResponse, error) {
	overview := dto.StudentOverviewResponse{
		Eligibility: string(authCtx.Eligibility),
		GeneratedAt: s.now().UTC(),
	}

	if authCtx.Eligibility == "" {
		return overview, nil
	}

	status := s.resolver.Resolve(ctx, models.WindowKindApplication, authCtx.Eligibility, "")
	windowStatus := dto.NewWindowStatusResponse(status, s.now().UTC())
	overview.ApplicationWindow = &windowStatus

	group, err := s.groups.GetByMember(ctx, authCtx.UserID, authCtx.Eligibility)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return overview, nil
		}

		return dto.StudentOverviewResponse{}, err
	}
	groupResponse := dto.NewGroupResponse(group)
	overview.Group = &groupResponse

	application, err := s.applications.GetByGroup(ctx, group.ID, authCtx.Eligibility)
	if err == nil {
		applicationResponse := dto.NewApplicationResponse(application)
		overview.Application = &applicationResponse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentOverviewResponse{}, err
	}

	evaluation, err := s.evaluations.GetByStudent(ctx, authCtx.UserID, authCtx.Eligibility)
	if err == nil {
		evaluationResponse := dto.NewEvaluationResponse(evaluation)
		overview.Evaluation = &evaluationResponse
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentOverviewResponse{}, err
	}

	return overview, nil
}
