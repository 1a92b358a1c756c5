package contract_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
)

func TestStudentOverviewContract(t *testing.T) {
	schema := compileSchema(t, "student_overview.schema.json")

	now := time.Now().UTC()
	overview := dto.StudentOverviewResponse{
		Eligibility: "IDP",
		Group: &dto.GroupResponse{
			ID:          4,
			Name:        "Solar Harvesters",
			ProjectType: "IDP",
			LeaderID:    11,
			Status:      "active",
			Members: []dto.GroupMemberResponse{
				{StudentID: 11, Name: "Ishita Sharma", Email: "ishita@srm.edu", Role: "leader", JoinedAt: now.AddDate(0, 0, -30)},
				{StudentID: 12, Name: "Rahul Nair", Email: "rahul@srm.edu", Role: "member", JoinedAt: now.AddDate(0, 0, -28)},
			},
			CreatedAt: now.AddDate(0, 0, -30),
			UpdatedAt: now.AddDate(0, 0, -28),
		},
		Application: &dto.ApplicationResponse{
			ID:          9,
			GroupID:     4,
			ProjectType: "IDP",
			Status:      "pending",
			Choices: []dto.ApplicationChoiceResponse{
				{Rank: 1, ProjectID: 21, ProjectTitle: "Rooftop Microgrid"},
				{Rank: 2, ProjectID: 24, ProjectTitle: "Irrigation Telemetry"},
			},
			CreatedAt: now.AddDate(0, 0, -3),
			UpdatedAt: now.AddDate(0, 0, -3),
		},
		Evaluation: &dto.EvaluationResponse{
			ID:            6,
			StudentID:     11,
			GroupID:       4,
			ProjectType:   "IDP",
			A1Convert:     9.5,
			InternalTotal: 9.5,
			GrandTotal:    9.5,
			CreatedAt:     now.AddDate(0, 0, -1),
			UpdatedAt:     now.AddDate(0, 0, -1),
		},
		ApplicationWindow: &dto.WindowStatusResponse{
			State: "active",
			Window: &dto.WindowResponse{
				ID:          3,
				Kind:        "application",
				ProjectType: "IDP",
				StartDate:   now.AddDate(0, 0, -2),
				EndDate:     now.AddDate(0, 0, 5),
			},
			CheckedAt: now,
		},
		GeneratedAt: now,
	}

	svc := stubDashboardService{overview: overview}
	app := dashboardApp(svc, service.AuthorizationContext{UserID: 11, Role: models.RoleStudent, Eligibility: models.ProjectTypeIDP})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestStudentOverviewContractWithoutAssignments(t *testing.T) {
	schema := compileSchema(t, "student_overview.schema.json")

	// A freshly provisioned student has nothing but an eligibility yet.
	overview := dto.StudentOverviewResponse{
		Eligibility: "UROP",
		GeneratedAt: time.Now().UTC(),
	}

	svc := stubDashboardService{overview: overview}
	app := dashboardApp(svc, service.AuthorizationContext{UserID: 30, Role: models.RoleStudent, Eligibility: models.ProjectTypeUROP})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
