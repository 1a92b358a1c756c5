package apperror

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Code is a stable numeric identifier exposed to API clients. The thousands
// digit groups codes by category: 1xxx authentication, 2xxx authorization,
// 3xxx validation, 4xxx resource, 5xxx business rule, 6xxx rate limiting,
// 7xxx server, 8xxx file handling, 9xxx upstream/network.
type Code int

// Authentication (1xxx).
const (
	CodeInvalidCredentials Code = 1001
	CodeTokenInvalid       Code = 1002
	CodeTokenExpired       Code = 1003
	CodeTokenRevoked       Code = 1004
	CodeAuthRequired       Code = 1005
	CodeAccountDisabled    Code = 1006
)

// Authorization (2xxx).
const (
	CodeForbidden     Code = 2001
	CodeWindowClosed  Code = 2002
	CodeNotEligible   Code = 2003
	CodeWindowUnknown Code = 2004
)

// Validation (3xxx).
const (
	CodeValidation Code = 3001
)

// Resources (4xxx).
const (
	CodeNotFound      Code = 4001
	CodeAlreadyExists Code = 4002
)

// Business rules (5xxx).
const (
	CodeBusinessRule     Code = 5001
	CodeAlreadySubmitted Code = 5002
	CodeCapacityReached  Code = 5003
	CodeAlreadyDecided   Code = 5004
	CodeAlreadyFinalized Code = 5005
	CodeVersionConflict  Code = 5006
	CodeLastAdmin        Code = 5007
)

// Rate limiting (6xxx).
const (
	CodeRateLimited Code = 6001
)

// Server (7xxx).
const (
	CodeInternal Code = 7000
)

// Files (8xxx).
const (
	CodeFileTooLarge   Code = 8001
	CodeFileNotAllowed Code = 8002
	CodeFileUpstream   Code = 8003
)

// Upstream/network (9xxx).
const (
	CodeUpstreamUnavailable Code = 9001
)

// AppError pairs a client-facing code with the HTTP status it travels on.
// Details carries optional structured context (e.g. field-level validation
// failures) and is serialized verbatim into the error envelope.
type AppError struct {
	Code    Code
	Status  int
	Message string
	Details interface{}
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any AppError carrying the same code, so derived errors (custom
// messages, attached details) still compare equal to their sentinel under
// errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithDetails returns a copy carrying the supplied details payload. The
// receiver is never mutated so the package-level sentinels stay shareable.
func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// New builds an AppError from an explicit (code, status, message) triple.
func New(code Code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// As unwraps err into an *AppError when one is anywhere in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Common sentinels. Handlers may return these directly or derive copies via
// WithDetails; anything that does not map to a known code falls back to
// Internal so no internals leak to clients.
var (
	InvalidCredentials = New(CodeInvalidCredentials, http.StatusUnauthorized, "invalid email or password")
	TokenInvalid       = New(CodeTokenInvalid, http.StatusUnauthorized, "invalid token")
	TokenExpired       = New(CodeTokenExpired, http.StatusUnauthorized, "token expired")
	TokenRevoked       = New(CodeTokenRevoked, http.StatusUnauthorized, "token has been revoked")
	AuthRequired       = New(CodeAuthRequired, http.StatusUnauthorized, "authentication required")
	AccountDisabled    = New(CodeAccountDisabled, http.StatusForbidden, "account is disabled")

	Forbidden     = New(CodeForbidden, http.StatusForbidden, "insufficient permissions")
	WindowClosed  = New(CodeWindowClosed, http.StatusForbidden, "the window for this action is closed")
	NotEligible   = New(CodeNotEligible, http.StatusForbidden, "not eligible for this project type")
	WindowUnknown = New(CodeWindowUnknown, http.StatusServiceUnavailable, "window status could not be determined, try again")

	NotFound      = New(CodeNotFound, http.StatusNotFound, "resource not found")
	AlreadyExists = New(CodeAlreadyExists, http.StatusConflict, "resource already exists")

	AlreadySubmitted = New(CodeAlreadySubmitted, http.StatusConflict, "already submitted")
	CapacityReached  = New(CodeCapacityReached, http.StatusConflict, "project capacity reached")
	AlreadyDecided   = New(CodeAlreadyDecided, http.StatusConflict, "application has already been decided")
	AlreadyFinalized = New(CodeAlreadyFinalized, http.StatusConflict, "evaluation has already been finalized")
	VersionConflict  = New(CodeVersionConflict, http.StatusConflict, "the record was modified by someone else, refresh and retry")
	LastAdmin        = New(CodeLastAdmin, http.StatusConflict, "cannot remove the last active administrator")

	RateLimited = New(CodeRateLimited, http.StatusTooManyRequests, "too many requests")

	Internal = New(CodeInternal, http.StatusInternalServerError, "internal server error")

	FileTooLarge        = New(CodeFileTooLarge, http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
	FileNotAllowed      = New(CodeFileNotAllowed, http.StatusBadRequest, "file type not allowed")
	FileUpstream        = New(CodeFileUpstream, http.StatusBadGateway, "file storage unavailable")
	UpstreamUnavailable = New(CodeUpstreamUnavailable, http.StatusServiceUnavailable, "upstream dependency unavailable")
)

// Validation wraps a request validation failure into a 400. Errors produced
// by the validator are translated into field-level details; any other error
// contributes its message verbatim.
func Validation(err error) *AppError {
	out := New(CodeValidation, http.StatusBadRequest, "validation failed")
	if err == nil {
		return out
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, FieldError{
				Field: strings.ToLower(fe.Field()),
				Rule:  fe.Tag(),
				Value: fe.Param(),
			})
		}
		out.Details = details
		return out
	}

	out.Message = err.Error()
	return out
}

// BusinessRule builds a 400 for a named domain-rule violation.
func BusinessRule(message string) *AppError {
	return New(CodeBusinessRule, http.StatusBadRequest, message)
}

// NotFoundf builds a 404 with a resource-specific message.
func NotFoundf(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

// Forbiddenf builds a 403 with a context-specific message.
func Forbiddenf(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

// AlreadyExistsf builds a 409 with a resource-specific message.
func AlreadyExistsf(message string) *AppError {
	return New(CodeAlreadyExists, http.StatusConflict, message)
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value string `json:"value,omitempty"`
}
