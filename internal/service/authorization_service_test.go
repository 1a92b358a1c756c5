package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/models"
)

func newAuthzFixture(users *memoryUserRepo, windows *memoryWindowRepo, reference time.Time) AuthorizationService {
	return NewAuthorizationService(users, newWindowFixture(windows, reference), testLogger())
}

func seedUser(t *testing.T, repo *memoryUserRepo, user models.User) models.User {
	t.Helper()
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	require.NoError(t, repo.Create(context.Background(), &user))
	return user
}

func TestBuildContextLoadsLiveRow(t *testing.T) {
	users := newMemoryUserRepo()
	faculty := seedUser(t, users, models.User{
		Name:          "Dr. Rao",
		Email:         "rao@srm.edu",
		Role:          models.RoleFaculty,
		IsCoordinator: true,
	})
	authz := newAuthzFixture(users, newMemoryWindowRepo(), time.Now())

	authCtx, err := authz.BuildContext(context.Background(), faculty.ID)
	require.NoError(t, err)
	require.Equal(t, faculty.ID, authCtx.UserID)
	require.Equal(t, models.RoleFaculty, authCtx.Role)
	require.True(t, authCtx.IsCoordinator)
	require.True(t, authCtx.Privileged())
}

func TestBuildContextRejectsMissingAndDisabled(t *testing.T) {
	users := newMemoryUserRepo()
	archived := seedUser(t, users, models.User{
		Name:   "Former Student",
		Email:  "old@srm.edu",
		Role:   models.RoleStudent,
		Status: models.UserStatusArchived,
	})
	authz := newAuthzFixture(users, newMemoryWindowRepo(), time.Now())

	_, err := authz.BuildContext(context.Background(), 999)
	require.ErrorIs(t, err, apperror.AuthRequired)

	_, err = authz.BuildContext(context.Background(), archived.ID)
	require.ErrorIs(t, err, apperror.AccountDisabled)
}

func TestCanAccessProjectTypeEligibility(t *testing.T) {
	authz := newAuthzFixture(newMemoryUserRepo(), newMemoryWindowRepo(), time.Now())

	student := AuthorizationContext{UserID: 1, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	require.NoError(t, authz.CanAccessProjectType(student, models.ProjectTypeIDP))
	require.ErrorIs(t, authz.CanAccessProjectType(student, models.ProjectTypeUROP), apperror.NotEligible)

	// Eligibility only constrains students.
	faculty := AuthorizationContext{UserID: 2, Role: models.RoleFaculty}
	require.NoError(t, authz.CanAccessProjectType(faculty, models.ProjectTypeCapstone))

	admin := AuthorizationContext{UserID: 3, Role: models.RoleAdmin}
	require.NoError(t, authz.CanAccessProjectType(admin, models.ProjectTypeUROP))
}

func TestWindowGateStates(t *testing.T) {
	reference := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	windows := newMemoryWindowRepo()
	windows.put(models.Window{
		Kind:        models.WindowKindApplication,
		ProjectType: models.ProjectTypeIDP,
		StartDate:   reference.Add(-time.Hour),
		EndDate:     reference.Add(time.Hour),
	})
	authz := newAuthzFixture(newMemoryUserRepo(), windows, reference)

	student := AuthorizationContext{UserID: 1, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP}
	require.NoError(t, authz.CanPerformActionInWindow(context.Background(), student, models.WindowKindApplication, models.ProjectTypeIDP, ""))

	urop := AuthorizationContext{UserID: 2, Role: models.RoleStudent, Eligibility: models.ProjectTypeUROP}
	err := authz.CanPerformActionInWindow(context.Background(), urop, models.WindowKindApplication, models.ProjectTypeUROP, "")
	require.ErrorIs(t, err, apperror.WindowClosed)

	windows.findErr = errors.New("connection reset")
	err = authz.CanPerformActionInWindow(context.Background(), student, models.WindowKindApplication, models.ProjectTypeIDP, "")
	require.ErrorIs(t, err, apperror.WindowUnknown)
}

func TestWindowGateBypassForPrivileged(t *testing.T) {
	// No windows exist at all, so only a bypass can succeed.
	authz := newAuthzFixture(newMemoryUserRepo(), newMemoryWindowRepo(), time.Now())

	admin := AuthorizationContext{UserID: 1, Role: models.RoleAdmin}
	require.NoError(t, authz.CanPerformActionInWindow(context.Background(), admin, models.WindowKindApplication, models.ProjectTypeIDP, ""))

	flagged := AuthorizationContext{UserID: 2, Role: models.RoleFaculty, IsCoordinator: true}
	require.NoError(t, authz.CanPerformActionInWindow(context.Background(), flagged, models.WindowKindInternalEvaluation, models.ProjectTypeUROP, models.AssessmentA1))

	plain := AuthorizationContext{UserID: 3, Role: models.RoleFaculty}
	err := authz.CanPerformActionInWindow(context.Background(), plain, models.WindowKindInternalEvaluation, models.ProjectTypeUROP, models.AssessmentA1)
	require.ErrorIs(t, err, apperror.WindowClosed)
}

func TestWindowGateChecksEligibilityBeforeWindow(t *testing.T) {
	reference := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	windows := newMemoryWindowRepo()
	windows.put(models.Window{
		Kind:        models.WindowKindApplication,
		ProjectType: models.ProjectTypeIDP,
		StartDate:   reference.Add(-time.Hour),
		EndDate:     reference.Add(time.Hour),
	})
	authz := newAuthzFixture(newMemoryUserRepo(), windows, reference)

	mismatched := AuthorizationContext{UserID: 1, Role: models.RoleStudent, Eligibility: models.ProjectTypeUROP}
	err := authz.CanPerformActionInWindow(context.Background(), mismatched, models.WindowKindApplication, models.ProjectTypeIDP, "")
	require.ErrorIs(t, err, apperror.NotEligible)
}
