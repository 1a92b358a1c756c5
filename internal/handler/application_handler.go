package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// ApplicationHandler wires the project application endpoints.
type ApplicationHandler struct {
	service service.ApplicationService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service service.ApplicationService, authz service.AuthorizationService, logger zerolog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "application_handler").Logger(),
	}
}

// Register attaches application routes. Deciding and the full listing are
// staff surfaces; the coordinator requirement is enforced in the service
// because only the live user row carries the coordinator flag.
func (h *ApplicationHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("", h.submit)
	router.Get("/mine", h.mine)
	router.Get("", staffOnly, h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/decision", staffOnly, h.decide)
}

func (h *ApplicationHandler) submit(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.ApplicationSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	application, err := h.service.Submit(requestContext(c), authCtx, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "application submitted", application)
}

func (h *ApplicationHandler) mine(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	application, err := h.service.MyApplication(requestContext(c), authCtx, c.Query("project_type"))
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "application retrieved", application)
}

func (h *ApplicationHandler) list(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	groupID, err := parseQueryUintPtr(c, "group_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid group id")
	}
	projectID, err := parseQueryUintPtr(c, "project_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project id")
	}

	req := dto.ApplicationListRequest{
		ProjectType: c.Query("project_type"),
		Status:      c.Query("status"),
		GroupID:     groupID,
		ProjectID:   projectID,
		Page:        page,
		PageSize:    pageSize,
	}

	response, err := h.service.List(requestContext(c), authCtx, req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "applications retrieved", response)
}

func (h *ApplicationHandler) get(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	application, err := h.service.Get(requestContext(c), authCtx, id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "application retrieved", application)
}

func (h *ApplicationHandler) decide(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ApplicationDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	application, err := h.service.Decide(requestContext(c), authCtx, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "application decided", application)
}
