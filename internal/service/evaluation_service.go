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

// EvaluationService records rubric marks and finalizes evaluations. Raw marks
// arrive from faculty and external evaluators; converted values and totals
// are always derived server-side.
type EvaluationService interface {
	RecordInternal(ctx context.Context, authCtx AuthorizationContext, payload dto.InternalScoreRequest) (dto.EvaluationResponse, error)
	RecordExternal(ctx context.Context, authCtx AuthorizationContext, payload dto.ExternalScoreRequest) (dto.EvaluationResponse, error)
	Finalize(ctx context.Context, authCtx AuthorizationContext, payload dto.EvaluationFinalizeRequest) (dto.EvaluationResponse, error)
	MyEvaluation(ctx context.Context, authCtx AuthorizationContext, projectType string) (dto.EvaluationResponse, error)
	GroupSummary(ctx context.Context, authCtx AuthorizationContext, groupID uint, projectType string) (dto.GroupEvaluationSummaryResponse, error)
	List(ctx context.Context, authCtx AuthorizationContext, payload dto.EvaluationListRequest) (dto.EvaluationListResponse, error)
}

type evaluationService struct {
	evaluations   repository.EvaluationRepository
	groups        repository.GroupRepository
	authz         AuthorizationService
	notifications NotificationService
	activity      ActivityRecorder
	retry         repository.RetryPolicy
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewEvaluationService builds a new evaluation service.
func NewEvaluationService(
	evaluations repository.EvaluationRepository,
	groups repository.GroupRepository,
	authz AuthorizationService,
	notifications NotificationService,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		evaluations:   evaluations,
		groups:        groups,
		authz:         authz,
		notifications: notifications,
		activity:      activity,
		retry:         repository.DefaultRetryPolicy,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "evaluation_service").Logger(),
		tracer:        otel.Tracer("github.com/srm-ap/portal-api/internal/service/evaluation"),
		now:           time.Now,
	}
}

// RecordInternal writes one raw internal mark (A1, A2 or A3) for a student.
// Faculty record marks inside the matching internal evaluation window;
// coordinators may correct marks at any time.
func (s *evaluationService) RecordInternal(ctx context.Context, authCtx AuthorizationContext, payload dto.InternalScoreRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, apperror.Validation(err)
	}

	if authCtx.Role != models.RoleFaculty && !authCtx.Privileged() {
		return dto.EvaluationResponse{}, apperror.Forbiddenf("only faculty can record internal marks")
	}

	projectType := models.ProjectType(payload.ProjectType)
	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindInternalEvaluation, projectType, payload.Assessment); err != nil {
		return dto.EvaluationResponse{}, err
	}

	convert, err := convertScore(payload.Assessment, *payload.Score)
	if err != nil {
		return dto.EvaluationResponse{}, apperror.Validation(err)
	}

	evaluation, err := s.ensureEvaluation(ctx, payload.StudentID, projectType)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	remarks := strings.TrimSpace(s.sanitizer.Sanitize(payload.Remarks))

	updated, err := s.evaluations.UpdateScored(ctx, evaluation.ID, s.retry, func(current models.Evaluation) (map[string]interface{}, error) {
		if current.Finalized {
			return nil, apperror.AlreadyFinalized
		}

		a1, a2, a3 := current.A1Convert, current.A2Convert, current.A3Convert
		updates := map[string]interface{}{}

		switch payload.Assessment {
		case models.AssessmentA1:
			a1 = convert
			updates["a1_conduct"] = *payload.Score
			updates["a1_convert"] = convert
		case models.AssessmentA2:
			a2 = convert
			updates["a2_conduct"] = *payload.Score
			updates["a2_convert"] = convert
		case models.AssessmentA3:
			a3 = convert
			updates["a3_conduct"] = *payload.Score
			updates["a3_convert"] = convert
		}

		totals := computeTotals(a1, a2, a3, current.ExternalConvert)
		updates["internal_total"] = totals.Internal
		updates["external_total"] = totals.External
		updates["grand_total"] = totals.Grand

		if remarks != "" {
			updates["remarks"] = remarks
		}

		return updates, nil
	})
	if err != nil {
		return dto.EvaluationResponse{}, s.mapScoreError(err, evaluation.ID)
	}

	observability.RecordScoreRecorded(payload.Assessment)
	s.logger.Info().
		Uint("evaluation_id", updated.ID).
		Uint("student_id", payload.StudentID).
		Str("assessment", payload.Assessment).
		Float64("convert", convert).
		Msg("internal mark recorded")

	return dto.NewEvaluationResponse(updated), nil
}

// RecordExternal writes the raw external report and presentation marks. Only
// designated external evaluators may call it, inside the external evaluation
// window.
func (s *evaluationService) RecordExternal(ctx context.Context, authCtx AuthorizationContext, payload dto.ExternalScoreRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, apperror.Validation(err)
	}

	if !authCtx.IsExternalEvaluator && !authCtx.Privileged() {
		return dto.EvaluationResponse{}, apperror.Forbiddenf("only external evaluators can record external marks")
	}

	if *payload.Report < 0 || *payload.Report > maxExternalConduct/2 {
		return dto.EvaluationResponse{}, apperror.Validation(fmt.Errorf("report score %g is outside [0, %g]", *payload.Report, maxExternalConduct/2))
	}
	if *payload.Presentation < 0 || *payload.Presentation > maxExternalConduct/2 {
		return dto.EvaluationResponse{}, apperror.Validation(fmt.Errorf("presentation score %g is outside [0, %g]", *payload.Presentation, maxExternalConduct/2))
	}

	projectType := models.ProjectType(payload.ProjectType)
	if err := s.authz.CanPerformActionInWindow(ctx, authCtx, models.WindowKindExternalEvaluation, projectType, models.AssessmentExternal); err != nil {
		return dto.EvaluationResponse{}, err
	}

	conduct := *payload.Report + *payload.Presentation
	convert, err := convertScore(models.AssessmentExternal, conduct)
	if err != nil {
		return dto.EvaluationResponse{}, apperror.Validation(err)
	}

	evaluation, err := s.ensureEvaluation(ctx, payload.StudentID, projectType)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	remarks := strings.TrimSpace(s.sanitizer.Sanitize(payload.Remarks))

	updated, err := s.evaluations.UpdateScored(ctx, evaluation.ID, s.retry, func(current models.Evaluation) (map[string]interface{}, error) {
		if current.Finalized {
			return nil, apperror.AlreadyFinalized
		}

		totals := computeTotals(current.A1Convert, current.A2Convert, current.A3Convert, convert)
		updates := map[string]interface{}{
			"external_report":       *payload.Report,
			"external_presentation": *payload.Presentation,
			"external_convert":      convert,
			"internal_total":        totals.Internal,
			"external_total":        totals.External,
			"grand_total":           totals.Grand,
		}

		if remarks != "" {
			updates["remarks"] = remarks
		}

		return updates, nil
	})
	if err != nil {
		return dto.EvaluationResponse{}, s.mapScoreError(err, evaluation.ID)
	}

	observability.RecordScoreRecorded(models.AssessmentExternal)
	s.logger.Info().
		Uint("evaluation_id", updated.ID).
		Uint("student_id", payload.StudentID).
		Float64("convert", convert).
		Msg("external marks recorded")

	return dto.NewEvaluationResponse(updated), nil
}

// Finalize locks an evaluation. Once finalized no further marks are accepted
// and the flag is never cleared through the API.
func (s *evaluationService) Finalize(ctx context.Context, authCtx AuthorizationContext, payload dto.EvaluationFinalizeRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, apperror.Validation(err)
	}

	if !authCtx.Privileged() {
		return dto.EvaluationResponse{}, apperror.Forbiddenf("only coordinators can finalize evaluations")
	}

	projectType := models.ProjectType(payload.ProjectType)
	evaluation, err := s.evaluations.GetByStudent(ctx, payload.StudentID, projectType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, apperror.NotFoundf("evaluation not found")
		}

		return dto.EvaluationResponse{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.Int("evaluation.id", int(evaluation.ID)),
		attribute.Int("student.id", int(payload.StudentID)),
		attribute.String("evaluation.project_type", payload.ProjectType),
	}
	spanCtx, span := s.tracer.Start(ctx, "evaluations.finalize", trace.WithAttributes(attrs...))
	defer span.End()

	finalizedAt := s.now().UTC()

	updated, err := s.evaluations.UpdateScored(spanCtx, evaluation.ID, s.retry, func(current models.Evaluation) (map[string]interface{}, error) {
		if current.Finalized {
			return nil, apperror.AlreadyFinalized
		}

		return map[string]interface{}{
			"finalized":    true,
			"finalized_by": authCtx.UserID,
			"finalized_at": finalizedAt,
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationResponse{}, s.mapScoreError(err, evaluation.ID)
	}

	observability.RecordEvaluationFinalized(string(projectType))
	s.logger.Info().
		Uint("evaluation_id", updated.ID).
		Uint("finalized_by", authCtx.UserID).
		Msg("evaluation finalized")

	s.recordFinalizeActivity(spanCtx, authCtx, updated)

	message := fmt.Sprintf("Your %s evaluation has been finalized.", updated.ProjectType)
	if err := s.notifications.NotifyUsers(spanCtx, []uint{updated.StudentID}, models.NotificationKindEvaluated, message); err != nil {
		s.logger.Warn().Err(err).Uint("evaluation_id", updated.ID).Msg("failed to notify student")
	}

	return dto.NewEvaluationResponse(updated), nil
}

// MyEvaluation returns the caller's own evaluation for a project type.
func (s *evaluationService) MyEvaluation(ctx context.Context, authCtx AuthorizationContext, projectType string) (dto.EvaluationResponse, error) {
	parsed := models.ProjectType(projectType)
	if !models.ValidProjectType(parsed) {
		return dto.EvaluationResponse{}, apperror.Validation(errors.New("unknown project type"))
	}

	evaluation, err := s.evaluations.GetByStudent(ctx, authCtx.UserID, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, apperror.NotFoundf("no evaluation recorded yet")
		}

		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

// GroupSummary aggregates the evaluations of one group. Staff and members of
// the group may read it.
func (s *evaluationService) GroupSummary(ctx context.Context, authCtx AuthorizationContext, groupID uint, projectType string) (dto.GroupEvaluationSummaryResponse, error) {
	parsed := models.ProjectType(projectType)
	if !models.ValidProjectType(parsed) {
		return dto.GroupEvaluationSummaryResponse{}, apperror.Validation(errors.New("unknown project type"))
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupEvaluationSummaryResponse{}, apperror.NotFoundf("group not found")
		}

		return dto.GroupEvaluationSummaryResponse{}, err
	}

	if err := s.requireGroupAccess(authCtx, group); err != nil {
		return dto.GroupEvaluationSummaryResponse{}, err
	}

	evaluations, err := s.evaluations.ListByGroup(ctx, groupID, parsed)
	if err != nil {
		return dto.GroupEvaluationSummaryResponse{}, err
	}

	var sum float64
	finalized := 0
	for _, evaluation := range evaluations {
		sum += evaluation.GrandTotal
		if evaluation.Finalized {
			finalized++
		}
	}

	average := 0.0
	if len(evaluations) > 0 {
		average = sum / float64(len(evaluations))
	}

	return dto.GroupEvaluationSummaryResponse{
		GroupID:      groupID,
		ProjectType:  string(parsed),
		Evaluations:  dto.NewEvaluationResponseSlice(evaluations),
		AverageTotal: average,
		AllFinalized: len(evaluations) > 0 && finalized == len(evaluations) && len(evaluations) == len(group.Members),
	}, nil
}

// List is a staff view over evaluations.
func (s *evaluationService) List(ctx context.Context, authCtx AuthorizationContext, payload dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationListResponse{}, apperror.Validation(err)
	}

	if !authCtx.Privileged() && authCtx.Role != models.RoleFaculty {
		return dto.EvaluationListResponse{}, apperror.Forbiddenf("only staff can list evaluations")
	}

	filter := repository.EvaluationFilter{
		ProjectType: payload.ProjectType,
		GroupID:     payload.GroupID,
		Finalized:   payload.Finalized,
		Page:        payload.Page,
		PageSize:    clampPageSize(payload.PageSize),
	}

	evaluations, total, err := s.evaluations.List(ctx, filter)
	if err != nil {
		return dto.EvaluationListResponse{}, err
	}

	return dto.EvaluationListResponse{
		Items:      dto.NewEvaluationResponseSlice(evaluations),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

// ensureEvaluation resolves the evaluation row for (student, project type),
// creating an empty one bound to the student's active group on first use.
func (s *evaluationService) ensureEvaluation(ctx context.Context, studentID uint, projectType models.ProjectType) (models.Evaluation, error) {
	evaluation, err := s.evaluations.GetByStudent(ctx, studentID, projectType)
	if err == nil {
		return evaluation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Evaluation{}, err
	}

	group, err := s.groups.GetByMember(ctx, studentID, projectType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, apperror.BusinessRule("student has no active group for this project type")
		}

		return models.Evaluation{}, err
	}

	fresh := models.Evaluation{
		StudentID:   studentID,
		GroupID:     group.ID,
		ProjectType: projectType,
	}
	if err := s.evaluations.Create(ctx, &fresh); err != nil {
		// Two evaluators racing on the first mark: one insert wins, the
		// loser reuses the winner's row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.evaluations.GetByStudent(ctx, studentID, projectType)
		}

		return models.Evaluation{}, err
	}

	return fresh, nil
}

func (s *evaluationService) requireGroupAccess(authCtx AuthorizationContext, group models.Group) error {
	if authCtx.Privileged() || authCtx.Role == models.RoleFaculty {
		return nil
	}

	for _, member := range group.Members {
		if member.StudentID == authCtx.UserID {
			return nil
		}
	}

	return apperror.Forbiddenf("you are not a member of this group")
}

func (s *evaluationService) mapScoreError(err error, evaluationID uint) error {
	if errors.Is(err, repository.ErrOptimisticLock) {
		observability.RecordLockConflict("evaluation")
		s.logger.Warn().Uint("evaluation_id", evaluationID).Msg("evaluation write lost optimistic lock race")
		return apperror.VersionConflict
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFoundf("evaluation not found")
	}

	return err
}

func (s *evaluationService) recordFinalizeActivity(ctx context.Context, authCtx AuthorizationContext, evaluation models.Evaluation) {
	entityID := evaluation.ID
	entry := ActivityEntry{
		ActorID:    authCtx.UserID,
		ActorRole:  string(authCtx.Role),
		Action:     "evaluation_finalize",
		EntityType: "evaluation",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"student_id":   evaluation.StudentID,
			"group_id":     evaluation.GroupID,
			"project_type": string(evaluation.ProjectType),
			"grand_total":  evaluation.GrandTotal,
		},
	}

	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Uint("evaluation_id", evaluation.ID).Msg("failed to record finalize activity")
	}
}
