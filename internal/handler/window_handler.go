package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// WindowHandler wires the time window endpoints.
type WindowHandler struct {
	service service.WindowService
	logger  zerolog.Logger
}

// NewWindowHandler constructs the handler.
func NewWindowHandler(service service.WindowService, logger zerolog.Logger) *WindowHandler {
	return &WindowHandler{
		service: service,
		logger:  logger.With().Str("component", "window_handler").Logger(),
	}
}

// Register attaches window routes. Status is readable by any authenticated
// user; listing is a staff surface and mutations are admin only.
func (h *WindowHandler) Register(router fiber.Router, staffOnly, adminOnly fiber.Handler) {
	router.Get("/status", h.status)
	router.Get("", staffOnly, h.list)
	router.Get("/:id", staffOnly, h.get)
	router.Post("", adminOnly, h.create)
	router.Patch("/:id", adminOnly, h.update)
	router.Delete("/:id", adminOnly, h.delete)
}

func (h *WindowHandler) status(c *fiber.Ctx) error {
	kind := models.WindowKind(strings.TrimSpace(c.Query("kind")))
	if !models.ValidWindowKind(kind) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid window kind")
	}

	projectType := models.ProjectType(strings.ToUpper(strings.TrimSpace(c.Query("project_type"))))
	if !models.ValidProjectType(projectType) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project type")
	}

	assessmentType := strings.TrimSpace(c.Query("assessment_type"))

	response := h.service.Status(requestContext(c), kind, projectType, assessmentType)
	return utils.SendSuccess(c, "window status resolved", response)
}

func (h *WindowHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.WindowListRequest{
		Kind:           c.Query("kind"),
		ProjectType:    c.Query("project_type"),
		AssessmentType: c.Query("assessment_type"),
		Page:           page,
		PageSize:       pageSize,
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "windows retrieved", response)
}

func (h *WindowHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	window, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "window retrieved", window)
}

func (h *WindowHandler) create(c *fiber.Ctx) error {
	var payload dto.WindowCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	window, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "window created", window)
}

func (h *WindowHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.WindowUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	window, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "window updated", window)
}

func (h *WindowHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "window deleted", fiber.Map{"id": id})
}
