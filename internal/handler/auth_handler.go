package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/middleware"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// AuthHandler wires the authentication endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth routes. Login, Google exchange and refresh are
// public; logout needs a valid access token to know whose session to drop.
func (h *AuthHandler) Register(router fiber.Router, jwtMiddleware fiber.Handler) {
	router.Post("/login", h.login)
	router.Post("/google", h.google)
	router.Post("/refresh", h.refresh)
	router.Post("/logout", jwtMiddleware, h.logout)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Login(requestContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "login successful", response)
}

func (h *AuthHandler) google(c *fiber.Ctx) error {
	var payload dto.GoogleLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.LoginWithGoogle(requestContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "login successful", response)
}

func (h *AuthHandler) refresh(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	tokens, err := h.service.Refresh(requestContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "token refreshed", tokens)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.service.Logout(requestContext(c), userID); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("logout failed")
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "logout successful", nil)
}
