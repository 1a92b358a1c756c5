package utils

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/srm-ap/portal-api/internal/apperror"
)

// APIResponse is the success envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// ErrorBody is the error payload nested inside the error envelope.
type ErrorBody struct {
	Code      apperror.Code `json:"code"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// SendSuccess sends a 200 response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendAppError serializes any error into the error envelope. Errors that are
// not AppErrors are reported as opaque internal failures so nothing from the
// database or a driver leaks to clients.
func SendAppError(c *fiber.Ctx, err error) error {
	appErr, ok := apperror.As(err)
	if !ok {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			appErr = apperror.New(apperror.CodeInternal, fiberErr.Code, fiberErr.Message)
		} else {
			appErr = apperror.Internal
		}
	}

	return c.Status(appErr.Status).JSON(ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Timestamp: time.Now().UTC(),
		},
	})
}

// SendError sends an error envelope with an explicit status and message. Used
// by middleware that rejects a request before any service runs.
func SendError(c *fiber.Ctx, status int, message string) error {
	code := apperror.CodeInternal
	switch status {
	case fiber.StatusUnauthorized:
		code = apperror.CodeAuthRequired
	case fiber.StatusForbidden:
		code = apperror.CodeForbidden
	case fiber.StatusTooManyRequests:
		code = apperror.CodeRateLimited
	case fiber.StatusBadRequest:
		code = apperror.CodeValidation
	case fiber.StatusNotFound:
		code = apperror.CodeNotFound
	}

	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	})
}

// ErrorHandler is the Fiber app-level error handler. Handlers normally call
// SendAppError themselves; this catches errors returned raw.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return SendAppError(c, err)
}
