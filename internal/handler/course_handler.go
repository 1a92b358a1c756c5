package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// CourseHandler wires the course and cohort endpoints.
type CourseHandler struct {
	service service.CourseService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, authz service.AuthorizationService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course routes. Browsing is open to authenticated users;
// mutations are admin only.
func (h *CourseHandler) Register(router fiber.Router, adminOnly fiber.Handler) {
	router.Get("", h.list)
	router.Post("", adminOnly, h.create)
	router.Patch("/cohorts/:id", adminOnly, h.updateCohort)
	router.Delete("/cohorts/:id", adminOnly, h.deleteCohort)
	router.Get("/:id", h.get)
	router.Patch("/:id", adminOnly, h.update)
	router.Delete("/:id", adminOnly, h.delete)
	router.Post("/:id/cohorts", adminOnly, h.addCohort)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	semester, err := parseQueryInt(c, "semester")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid semester")
	}

	req := dto.CourseListRequest{
		Search:   c.Query("search"),
		Semester: semester,
		Page:     page,
		PageSize: pageSize,
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "courses retrieved", response)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Create(requestContext(c), actor, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Update(requestContext(c), actor, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actor, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "course deleted", fiber.Map{"id": id})
}

func (h *CourseHandler) addCohort(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CohortCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	cohort, err := h.service.AddCohort(requestContext(c), actor, courseID, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "cohort created", cohort)
}

func (h *CourseHandler) updateCohort(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CohortUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	cohort, err := h.service.UpdateCohort(requestContext(c), actor, id, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "cohort updated", cohort)
}

func (h *CourseHandler) deleteCohort(c *fiber.Ctx) error {
	actor, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteCohort(requestContext(c), actor, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "cohort deleted", fiber.Map{"id": id})
}
