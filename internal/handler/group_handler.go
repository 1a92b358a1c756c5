package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/middleware"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// GroupHandler wires the group formation endpoints.
type GroupHandler struct {
	service service.GroupService
	logger  zerolog.Logger
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(service service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		service: service,
		logger:  logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register attaches group routes. The full listing is a staff surface;
// everything else is driven by the authenticated student.
func (h *GroupHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("", h.create)
	router.Get("/mine", h.mine)
	router.Get("", staffOnly, h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/join", h.join)
	router.Post("/:id/leave", h.leave)
	router.Delete("/:id", h.disband)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.GroupCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	group, err := h.service.Create(requestContext(c), userID, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *GroupHandler) mine(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	projectType := models.ProjectType(strings.ToUpper(strings.TrimSpace(c.Query("project_type"))))
	if !models.ValidProjectType(projectType) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid project type")
	}

	group, err := h.service.MyGroup(requestContext(c), userID, projectType)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "group retrieved", group)
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.GroupListRequest{
		Search:      c.Query("search"),
		ProjectType: c.Query("project_type"),
		Status:      c.Query("status"),
		Page:        page,
		PageSize:    pageSize,
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "groups retrieved", response)
}

func (h *GroupHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	group, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "group retrieved", group)
}

func (h *GroupHandler) join(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	group, err := h.service.Join(requestContext(c), userID, id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "group joined", group)
}

func (h *GroupHandler) leave(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Leave(requestContext(c), userID, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "group left", fiber.Map{"id": id})
}

func (h *GroupHandler) disband(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Disband(requestContext(c), userID, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "group disbanded", fiber.Map{"id": id})
}
