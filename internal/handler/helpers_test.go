package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
)

// loginAs simulates the JWT middleware by planting the caller identity in
// request locals.
func loginAs(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		return c.Next()
	}
}

// stubAuthz hands back a fixed authorization context.
type stubAuthz struct {
	ctx service.AuthorizationContext
	err error
}

func (s *stubAuthz) BuildContext(_ context.Context, userID uint) (service.AuthorizationContext, error) {
	if s.err != nil {
		return service.AuthorizationContext{}, s.err
	}
	ctx := s.ctx
	if ctx.UserID == 0 {
		ctx.UserID = userID
	}
	return ctx, nil
}

func (s *stubAuthz) CanAccessProjectType(service.AuthorizationContext, models.ProjectType) error {
	return nil
}

func (s *stubAuthz) CanPerformActionInWindow(context.Context, service.AuthorizationContext, models.WindowKind, models.ProjectType, string) error {
	return nil
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    apperror.Code `json:"code"`
		Message string        `json:"message"`
	} `json:"error"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func testRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	return resp
}
