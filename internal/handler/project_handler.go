package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// ProjectHandler wires the project catalogue endpoints.
type ProjectHandler struct {
	service service.ProjectService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewProjectHandler constructs the handler.
func NewProjectHandler(service service.ProjectService, authz service.AuthorizationService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register attaches project routes. Browsing is open to all authenticated
// users; proposing and editing are staff surfaces with ownership enforced
// in the service.
func (h *ProjectHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", staffOnly, h.propose)
	router.Patch("/:id", staffOnly, h.update)
	router.Post("/:id/close", staffOnly, h.close)
}

func (h *ProjectHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	open, err := parseQueryBool(c, "open")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid open filter")
	}
	facultyID, err := parseQueryUintPtr(c, "faculty_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid faculty id")
	}

	req := dto.ProjectListRequest{
		Search:      c.Query("search"),
		ProjectType: c.Query("project_type"),
		FacultyID:   facultyID,
		Open:        open,
		Page:        page,
		PageSize:    pageSize,
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "projects retrieved", response)
}

func (h *ProjectHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	project, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "project retrieved", project)
}

func (h *ProjectHandler) propose(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.ProjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.service.Propose(requestContext(c), authCtx, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project proposed", project)
}

func (h *ProjectHandler) update(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ProjectUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	project, err := h.service.Update(requestContext(c), authCtx, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "project updated", project)
}

func (h *ProjectHandler) close(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	project, err := h.service.Close(requestContext(c), authCtx, id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "project closed", project)
}
