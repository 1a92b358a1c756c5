package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/handler"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
)

type mockSeedService struct {
	adminErr    error
	coursesErr  error
	lastToken   string
	lastCourses []models.Course
	affected    int64
}

func (m *mockSeedService) SeedAdmin(_ context.Context, token, _, _, _ string) (int64, error) {
	m.lastToken = token
	if m.adminErr != nil {
		return 0, m.adminErr
	}
	return m.affected, nil
}

func (m *mockSeedService) SeedCourses(_ context.Context, token string, items []models.Course) (int64, error) {
	m.lastToken = token
	m.lastCourses = items
	if m.coursesErr != nil {
		return 0, m.coursesErr
	}
	return m.affected, nil
}

func newSeedApp(svc *mockSeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/seed"))
	return app
}

func TestSeedHandlerAdminSuccess(t *testing.T) {
	svc := &mockSeedService{affected: 1}
	app := newSeedApp(svc)

	payload := map[string]string{"name": "Portal Admin", "email": "admin@srm.edu", "password": "boot-secret"}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/admin", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Seed-Token", "secret")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Affected int64 `json:"affected"`
		} `json:"data"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, int64(1), envelope.Data.Affected)
	require.Equal(t, "secret", svc.lastToken)
}

func TestSeedHandlerCoursesErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "disabled", err: service.ErrSeedDisabled, statusCode: fiber.StatusForbidden},
		{name: "unauthorized", err: service.ErrSeedUnauthorized, statusCode: fiber.StatusForbidden},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockSeedService{coursesErr: tc.err}
			app := newSeedApp(svc)

			payload := map[string]interface{}{"items": []models.Course{{Code: "CSE301", Title: "Software Engineering"}}}
			body, err := json.Marshal(payload)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/courses", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Seed-Token", "secret")

			resp := testRequest(t, app, req)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestSeedHandlerInvalidPayload(t *testing.T) {
	svc := &mockSeedService{}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/admin", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")

	resp := testRequest(t, app, req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
