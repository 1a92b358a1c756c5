package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/repository"
)

type memoryEvaluationRepo struct {
	evaluations  map[uint]models.Evaluation
	nextID       uint
	lockConflict bool
}

func newMemoryEvaluationRepo() *memoryEvaluationRepo {
	return &memoryEvaluationRepo{evaluations: map[uint]models.Evaluation{}, nextID: 1}
}

func (r *memoryEvaluationRepo) List(_ context.Context, filter repository.EvaluationFilter) ([]models.Evaluation, int64, error) {
	matches := make([]models.Evaluation, 0, len(r.evaluations))
	for _, evaluation := range r.evaluations {
		if filter.ProjectType != "" && string(evaluation.ProjectType) != filter.ProjectType {
			continue
		}
		if filter.GroupID != nil && evaluation.GroupID != *filter.GroupID {
			continue
		}
		if filter.Finalized != nil && evaluation.Finalized != *filter.Finalized {
			continue
		}
		matches = append(matches, evaluation)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, int64(len(matches)), nil
}

func (r *memoryEvaluationRepo) GetByID(_ context.Context, id uint) (models.Evaluation, error) {
	evaluation, ok := r.evaluations[id]
	if !ok {
		return models.Evaluation{}, gorm.ErrRecordNotFound
	}
	return evaluation, nil
}

func (r *memoryEvaluationRepo) GetByStudent(_ context.Context, studentID uint, projectType models.ProjectType) (models.Evaluation, error) {
	for _, evaluation := range r.evaluations {
		if evaluation.StudentID == studentID && evaluation.ProjectType == projectType {
			return evaluation, nil
		}
	}
	return models.Evaluation{}, gorm.ErrRecordNotFound
}

func (r *memoryEvaluationRepo) ListByGroup(_ context.Context, groupID uint, projectType models.ProjectType) ([]models.Evaluation, error) {
	matches := make([]models.Evaluation, 0, len(r.evaluations))
	for _, evaluation := range r.evaluations {
		if evaluation.GroupID == groupID && evaluation.ProjectType == projectType {
			matches = append(matches, evaluation)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (r *memoryEvaluationRepo) Create(_ context.Context, evaluation *models.Evaluation) error {
	for _, existing := range r.evaluations {
		if existing.StudentID == evaluation.StudentID && existing.ProjectType == evaluation.ProjectType {
			return gorm.ErrDuplicatedKey
		}
	}
	evaluation.ID = r.nextID
	r.nextID++
	r.evaluations[evaluation.ID] = *evaluation
	return nil
}

func (r *memoryEvaluationRepo) UpdateScored(_ context.Context, id uint, _ repository.RetryPolicy, recompute func(models.Evaluation) (map[string]interface{}, error)) (models.Evaluation, error) {
	evaluation, ok := r.evaluations[id]
	if !ok {
		return models.Evaluation{}, gorm.ErrRecordNotFound
	}

	updates, err := recompute(evaluation)
	if err != nil {
		return models.Evaluation{}, err
	}
	if r.lockConflict {
		return models.Evaluation{}, repository.ErrOptimisticLock
	}

	for column, value := range updates {
		switch column {
		case "a1_conduct":
			raw := value.(float64)
			evaluation.A1Conduct = &raw
		case "a1_convert":
			evaluation.A1Convert = value.(float64)
		case "a2_conduct":
			raw := value.(float64)
			evaluation.A2Conduct = &raw
		case "a2_convert":
			evaluation.A2Convert = value.(float64)
		case "a3_conduct":
			raw := value.(float64)
			evaluation.A3Conduct = &raw
		case "a3_convert":
			evaluation.A3Convert = value.(float64)
		case "external_report":
			raw := value.(float64)
			evaluation.ExternalReport = &raw
		case "external_presentation":
			raw := value.(float64)
			evaluation.ExternalPresentation = &raw
		case "external_convert":
			evaluation.ExternalConvert = value.(float64)
		case "internal_total":
			evaluation.InternalTotal = value.(float64)
		case "external_total":
			evaluation.ExternalTotal = value.(float64)
		case "grand_total":
			evaluation.GrandTotal = value.(float64)
		case "remarks":
			evaluation.Remarks = value.(string)
		case "finalized":
			evaluation.Finalized = value.(bool)
		case "finalized_by":
			by := value.(uint)
			evaluation.FinalizedBy = &by
		case "finalized_at":
			at := value.(time.Time)
			evaluation.FinalizedAt = &at
		}
	}
	evaluation.LockVersion++
	r.evaluations[id] = evaluation
	return evaluation, nil
}

func (r *memoryEvaluationRepo) CountFinalized(_ context.Context, projectType models.ProjectType) (int64, error) {
	var total int64
	for _, evaluation := range r.evaluations {
		if projectType != "" && evaluation.ProjectType != projectType {
			continue
		}
		if evaluation.Finalized {
			total++
		}
	}
	return total, nil
}

type evaluationFixture struct {
	svc      EvaluationService
	evals    *memoryEvaluationRepo
	groups   *memoryGroupRepo
	users    *memoryUserRepo
	windows  *memoryWindowRepo
	notifier *recordingNotifier
	activity *recordingActivity
}

func newEvaluationFixture(reference time.Time) evaluationFixture {
	users := newMemoryUserRepo()
	windows := newMemoryWindowRepo()
	groups := newMemoryGroupRepo()
	evals := newMemoryEvaluationRepo()
	notifier := &recordingNotifier{}
	activity := &recordingActivity{}
	authz := newAuthzFixture(users, windows, reference)
	validate := validator.New(validator.WithRequiredStructEnabled())

	return evaluationFixture{
		svc:      NewEvaluationService(evals, groups, authz, notifier, activity, validate, testLogger()),
		evals:    evals,
		groups:   groups,
		users:    users,
		windows:  windows,
		notifier: notifier,
		activity: activity,
	}
}

func openScoringWindow(windows *memoryWindowRepo, kind models.WindowKind, projectType models.ProjectType, assessment string, reference time.Time) {
	windows.put(models.Window{
		Kind:           kind,
		ProjectType:    projectType,
		AssessmentType: assessment,
		StartDate:      reference.Add(-time.Hour),
		EndDate:        reference.Add(time.Hour),
	})
}

func facultyContext(userID uint) AuthorizationContext {
	return AuthorizationContext{UserID: userID, Role: models.RoleFaculty}
}

func externalContext(userID uint) AuthorizationContext {
	return AuthorizationContext{UserID: userID, Role: models.RoleFaculty, IsExternalEvaluator: true}
}

func scoreOf(v float64) *float64 {
	return &v
}

func TestEvaluationRecordInternalDerivesConvertAndTotals(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA2, reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, group := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	resp, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA2,
		Score:       scoreOf(24),
	})
	require.NoError(t, err)
	require.Equal(t, group.ID, resp.GroupID)
	require.NotNil(t, resp.A2Conduct)
	require.Equal(t, float64(24), *resp.A2Conduct)
	require.Equal(t, float64(12), resp.A2Convert)
	require.Equal(t, float64(12), resp.InternalTotal)
	require.Equal(t, float64(12), resp.GrandTotal)

	// A second component accumulates into the totals.
	resp, err = fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(18),
	})
	require.NoError(t, err)
	require.Equal(t, float64(9), resp.A1Convert)
	require.Equal(t, float64(21), resp.InternalTotal)
	require.Equal(t, float64(21), resp.GrandTotal)

	// Corrections overwrite, not accumulate.
	resp, err = fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA2,
		Score:       scoreOf(15),
	})
	require.NoError(t, err)
	require.Equal(t, float64(8), resp.A2Convert)
	require.Equal(t, float64(17), resp.InternalTotal)
}

func TestEvaluationRecordInternalRejectsOutOfRange(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	_, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(20.5),
	})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEvaluationRecordInternalRoleAndWindowGates(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	student := AuthorizationContext{UserID: leader.ID, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	_, err := fx.svc.RecordInternal(context.Background(), student, dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(10),
	})
	require.ErrorIs(t, err, apperror.Forbidden)

	// The A2 window is not open, only A1.
	_, err = fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA2,
		Score:       scoreOf(10),
	})
	require.ErrorIs(t, err, apperror.WindowClosed)

	// Coordinators correct marks with no window open.
	_, err = fx.svc.RecordInternal(context.Background(), coordinatorContext(80), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA2,
		Score:       scoreOf(10),
	})
	require.NoError(t, err)
}

func TestEvaluationRecordExternalSumsComponents(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindExternalEvaluation, models.ProjectTypeCapstone, models.AssessmentExternal, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeCapstone, 2)

	resp, err := fx.svc.RecordExternal(context.Background(), externalContext(91), dto.ExternalScoreRequest{
		StudentID:    leader.ID,
		ProjectType:  "CAPSTONE",
		Report:       scoreOf(40),
		Presentation: scoreOf(41),
	})
	require.NoError(t, err)
	require.Equal(t, float64(41), resp.ExternalConvert)
	require.Equal(t, float64(41), resp.ExternalTotal)
	require.Equal(t, float64(41), resp.GrandTotal)
	require.NotNil(t, resp.ExternalReport)
	require.Equal(t, float64(40), *resp.ExternalReport)
}

func TestEvaluationRecordExternalComponentBounds(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindExternalEvaluation, models.ProjectTypeCapstone, models.AssessmentExternal, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeCapstone, 2)

	_, err := fx.svc.RecordExternal(context.Background(), externalContext(91), dto.ExternalScoreRequest{
		StudentID:    leader.ID,
		ProjectType:  "CAPSTONE",
		Report:       scoreOf(51),
		Presentation: scoreOf(10),
	})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = fx.svc.RecordExternal(context.Background(), externalContext(91), dto.ExternalScoreRequest{
		StudentID:    leader.ID,
		ProjectType:  "CAPSTONE",
		Report:       scoreOf(10),
		Presentation: scoreOf(-1),
	})
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEvaluationRecordExternalEvaluatorsOnly(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindExternalEvaluation, models.ProjectTypeCapstone, models.AssessmentExternal, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeCapstone, 2)

	_, err := fx.svc.RecordExternal(context.Background(), facultyContext(70), dto.ExternalScoreRequest{
		StudentID:    leader.ID,
		ProjectType:  "CAPSTONE",
		Report:       scoreOf(30),
		Presentation: scoreOf(30),
	})
	require.ErrorIs(t, err, apperror.Forbidden)
}

func TestEvaluationFinalizeLocksRow(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	_, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(18),
	})
	require.NoError(t, err)

	finalized, err := fx.svc.Finalize(context.Background(), coordinatorContext(80), dto.EvaluationFinalizeRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
	})
	require.NoError(t, err)
	require.True(t, finalized.Finalized)
	require.NotNil(t, finalized.FinalizedBy)
	require.Equal(t, uint(80), *finalized.FinalizedBy)
	require.NotNil(t, finalized.FinalizedAt)

	// The student hears about it and the audit trail records it.
	require.Len(t, fx.notifier.batches, 1)
	require.Equal(t, []uint{leader.ID}, fx.notifier.batches[0])
	require.Len(t, fx.activity.entries, 1)
	require.Equal(t, "evaluation_finalize", fx.activity.entries[0].Action)

	// No further writes once locked, even for coordinators.
	_, err = fx.svc.RecordInternal(context.Background(), coordinatorContext(80), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(20),
	})
	require.ErrorIs(t, err, apperror.AlreadyFinalized)

	_, err = fx.svc.Finalize(context.Background(), coordinatorContext(81), dto.EvaluationFinalizeRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
	})
	require.ErrorIs(t, err, apperror.AlreadyFinalized)
}

func TestEvaluationFinalizeCoordinatorOnly(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)

	_, err := fx.svc.Finalize(context.Background(), facultyContext(70), dto.EvaluationFinalizeRequest{
		StudentID:   1,
		ProjectType: "IDP",
	})
	require.ErrorIs(t, err, apperror.Forbidden)
}

func TestEvaluationFinalizeSurfacesLockConflict(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	_, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(18),
	})
	require.NoError(t, err)

	fx.evals.lockConflict = true
	_, err = fx.svc.Finalize(context.Background(), coordinatorContext(80), dto.EvaluationFinalizeRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
	})
	require.ErrorIs(t, err, apperror.VersionConflict)
}

func TestEvaluationRequiresActiveGroup(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	loner := seedStudent(t, fx.users, "Solo Rider", models.ProjectTypeIDP)

	_, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   loner.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(10),
	})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestEvaluationMyEvaluation(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, _ := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	student := AuthorizationContext{UserID: leader.ID, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	_, err := fx.svc.MyEvaluation(context.Background(), student, "IDP")
	require.ErrorIs(t, err, apperror.NotFound)

	_, err = fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
		StudentID:   leader.ID,
		ProjectType: "IDP",
		Assessment:  models.AssessmentA1,
		Score:       scoreOf(18),
	})
	require.NoError(t, err)

	mine, err := fx.svc.MyEvaluation(context.Background(), student, "IDP")
	require.NoError(t, err)
	require.Equal(t, leader.ID, mine.StudentID)
	require.Equal(t, float64(9), mine.A1Convert)

	_, err = fx.svc.MyEvaluation(context.Background(), student, "SUMMER")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEvaluationGroupSummary(t *testing.T) {
	reference := time.Date(2026, 5, 12, 11, 0, 0, 0, time.UTC)
	fx := newEvaluationFixture(reference)
	openScoringWindow(fx.windows, models.WindowKindInternalEvaluation, models.ProjectTypeIDP, models.AssessmentA1, reference)
	leader, group := seedTeam(t, fx.users, fx.groups, models.ProjectTypeIDP, 2)

	var memberID uint
	for _, member := range group.Members {
		if member.StudentID != leader.ID {
			memberID = member.StudentID
		}
	}
	require.NotZero(t, memberID)

	for _, studentID := range []uint{leader.ID, memberID} {
		_, err := fx.svc.RecordInternal(context.Background(), facultyContext(70), dto.InternalScoreRequest{
			StudentID:   studentID,
			ProjectType: "IDP",
			Assessment:  models.AssessmentA1,
			Score:       scoreOf(18),
		})
		require.NoError(t, err)
	}

	staff := facultyContext(70)
	summary, err := fx.svc.GroupSummary(context.Background(), staff, group.ID, "IDP")
	require.NoError(t, err)
	require.Len(t, summary.Evaluations, 2)
	require.Equal(t, float64(9), summary.AverageTotal)
	require.False(t, summary.AllFinalized)

	for _, studentID := range []uint{leader.ID, memberID} {
		_, err := fx.svc.Finalize(context.Background(), coordinatorContext(80), dto.EvaluationFinalizeRequest{
			StudentID:   studentID,
			ProjectType: "IDP",
		})
		require.NoError(t, err)
	}

	summary, err = fx.svc.GroupSummary(context.Background(), staff, group.ID, "IDP")
	require.NoError(t, err)
	require.True(t, summary.AllFinalized)

	// Members may read their own group, outsiders may not.
	member := AuthorizationContext{UserID: memberID, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	_, err = fx.svc.GroupSummary(context.Background(), member, group.ID, "IDP")
	require.NoError(t, err)

	outsider := AuthorizationContext{UserID: 999, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	_, err = fx.svc.GroupSummary(context.Background(), outsider, group.ID, "IDP")
	require.ErrorIs(t, err, apperror.Forbidden)
}
