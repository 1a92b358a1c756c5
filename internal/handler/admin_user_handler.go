package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// AdminUserHandler wires the account management endpoints.
type AdminUserHandler struct {
	service service.AdminUserService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(service service.AdminUserService, authz service.AuthorizationService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches account admin routes. The whole group sits behind the
// admin role gate in the router.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Patch("/:id/role", h.changeRole)
	router.Delete("/:id", h.softDelete)
	router.Delete("/:id/hard", h.hardDelete)
	router.Post("/:id/restore", h.restore)
}

func (h *AdminUserHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	includeDeleted, err := parseQueryBool(c, "include_deleted")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid include_deleted filter")
	}

	req := dto.AdminUserListRequest{
		Page:        page,
		PageSize:    pageSize,
		Search:      c.Query("search"),
		Role:        c.Query("role"),
		Status:      c.Query("status"),
		Eligibility: c.Query("eligibility"),
		Sort:        c.Query("sort"),
	}
	if includeDeleted != nil {
		req.IncludeDeleted = *includeDeleted
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "users retrieved", response)
}

func (h *AdminUserHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *AdminUserHandler) create(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.AdminUserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Create(requestContext(c), actor, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *AdminUserHandler) update(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AdminUserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Update(requestContext(c), actor, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "user updated", user)
}

func (h *AdminUserHandler) changeRole(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AdminUserRoleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.ChangeRole(requestContext(c), actor, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "role updated", user)
}

func (h *AdminUserHandler) softDelete(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.SoftDelete(requestContext(c), actor, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "user deleted", fiber.Map{"id": id})
}

func (h *AdminUserHandler) hardDelete(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.HardDelete(requestContext(c), actor, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "user permanently deleted", fiber.Map{"id": id})
}

func (h *AdminUserHandler) restore(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Restore(requestContext(c), actor, id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "user restored", user)
}
