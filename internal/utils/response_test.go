package utils_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/utils"
)

func TestSendSuccessDefaultsMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", map[string]string{"hello": "world"})
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
}

func TestSendAppErrorSerializesCodeAndDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		err := apperror.Validation(nil).WithDetails([]apperror.FieldError{{Field: "email", Rule: "required"}})
		return utils.SendAppError(c, err)
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code      int                      `json:"code"`
			Message   string                   `json:"message"`
			Details   []map[string]interface{} `json:"details"`
			Timestamp string                   `json:"timestamp"`
		} `json:"error"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, int(apperror.CodeValidation), payload.Error.Code)
	require.Equal(t, "validation failed", payload.Error.Message)
	require.Len(t, payload.Error.Details, 1)
	require.Equal(t, "email", payload.Error.Details[0]["field"])
	require.NotEmpty(t, payload.Error.Timestamp)
}

func TestSendAppErrorHidesUnknownErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return utils.SendAppError(c, errors.New("pq: connection refused"))
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, resp, &payload)

	require.Equal(t, int(apperror.CodeInternal), payload.Error.Code)
	require.Equal(t, "internal server error", payload.Error.Message)
}

func TestErrorHandlerCatchesRawErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return apperror.WindowClosed
	})

	resp := performRequest(t, app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	decode(t, resp, &payload)

	require.False(t, payload.Success)
	require.Equal(t, int(apperror.CodeWindowClosed), payload.Error.Code)
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
