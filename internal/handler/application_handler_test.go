package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/handler"
	"github.com/srm-ap/portal-api/internal/middleware"
	"github.com/srm-ap/portal-api/internal/service"
)

type mockApplicationService struct {
	submitted   dto.ApplicationResponse
	submitErr   error
	decided     dto.ApplicationResponse
	decideErr   error
	lastPayload dto.ApplicationSubmitRequest
}

func (m *mockApplicationService) Submit(_ context.Context, _ service.AuthorizationContext, payload dto.ApplicationSubmitRequest) (dto.ApplicationResponse, error) {
	m.lastPayload = payload
	if m.submitErr != nil {
		return dto.ApplicationResponse{}, m.submitErr
	}
	return m.submitted, nil
}

func (m *mockApplicationService) Decide(context.Context, service.AuthorizationContext, uint, dto.ApplicationDecisionRequest) (dto.ApplicationResponse, error) {
	if m.decideErr != nil {
		return dto.ApplicationResponse{}, m.decideErr
	}
	return m.decided, nil
}

func (m *mockApplicationService) Get(context.Context, service.AuthorizationContext, uint) (dto.ApplicationResponse, error) {
	return m.submitted, nil
}

func (m *mockApplicationService) MyApplication(context.Context, service.AuthorizationContext, string) (dto.ApplicationResponse, error) {
	return m.submitted, nil
}

func (m *mockApplicationService) List(context.Context, service.AuthorizationContext, dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	return dto.ApplicationListResponse{}, nil
}

func newApplicationApp(svc *mockApplicationService, identity fiber.Handler) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/applications")
	if identity != nil {
		group.Use(identity)
	}
	handler.NewApplicationHandler(svc, &stubAuthz{}, zerolog.New(io.Discard)).Register(group, middleware.RequireStaff())
	return app
}

func TestApplicationHandlerSubmitCreated(t *testing.T) {
	svc := &mockApplicationService{submitted: dto.ApplicationResponse{ID: 9, GroupID: 3, ProjectType: "IDP", Status: "pending"}}
	app := newApplicationApp(svc, loginAs(12, "student"))

	body, err := json.Marshal(dto.ApplicationSubmitRequest{ProjectType: "IDP", Choices: []uint{4, 2, 7}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var envelope struct {
		Success bool                    `json:"success"`
		Data    dto.ApplicationResponse `json:"data"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, uint(9), envelope.Data.ID)
	require.Equal(t, []uint{4, 2, 7}, svc.lastPayload.Choices)
}

func TestApplicationHandlerSubmitWindowClosed(t *testing.T) {
	svc := &mockApplicationService{submitErr: apperror.WindowClosed}
	app := newApplicationApp(svc, loginAs(12, "student"))

	body, err := json.Marshal(dto.ApplicationSubmitRequest{ProjectType: "IDP", Choices: []uint{4}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var envelope errorEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, apperror.CodeWindowClosed, envelope.Error.Code)
}

func TestApplicationHandlerDecideRequiresStaffRole(t *testing.T) {
	svc := &mockApplicationService{}
	app := newApplicationApp(svc, loginAs(12, "student"))

	body, err := json.Marshal(dto.ApplicationDecisionRequest{Decision: "approve"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications/9/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestApplicationHandlerDecideConflictSurfaces(t *testing.T) {
	svc := &mockApplicationService{decideErr: apperror.AlreadyDecided}
	app := newApplicationApp(svc, loginAs(2, "coordinator"))

	projectID := uint(4)
	body, err := json.Marshal(dto.ApplicationDecisionRequest{Decision: "approve", ProjectID: &projectID})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications/9/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var envelope errorEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, apperror.CodeAlreadyDecided, envelope.Error.Code)
}

func TestApplicationHandlerRejectsBadIdentifier(t *testing.T) {
	svc := &mockApplicationService{}
	app := newApplicationApp(svc, loginAs(2, "coordinator"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications/zero", nil)
	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
