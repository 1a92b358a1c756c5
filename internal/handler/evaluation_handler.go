package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// EvaluationHandler wires the evaluation and scoring endpoints.
type EvaluationHandler struct {
	service service.EvaluationService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, authz service.AuthorizationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches evaluation routes. Recording and finalizing are staff
// surfaces; the finer distinctions (external evaluator flag, coordinator
// privilege) live in the service against the live user row.
func (h *EvaluationHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Post("/internal", staffOnly, h.recordInternal)
	router.Post("/external", staffOnly, h.recordExternal)
	router.Post("/finalize", staffOnly, h.finalize)
	router.Get("/mine", h.mine)
	router.Get("/groups/:id", h.groupSummary)
	router.Get("", staffOnly, h.list)
}

func (h *EvaluationHandler) recordInternal(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.InternalScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	evaluation, err := h.service.RecordInternal(requestContext(c), authCtx, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "internal score recorded", evaluation)
}

func (h *EvaluationHandler) recordExternal(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.ExternalScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	evaluation, err := h.service.RecordExternal(requestContext(c), authCtx, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "external score recorded", evaluation)
}

func (h *EvaluationHandler) finalize(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	var payload dto.EvaluationFinalizeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	evaluation, err := h.service.Finalize(requestContext(c), authCtx, payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "evaluation finalized", evaluation)
}

func (h *EvaluationHandler) mine(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	evaluation, err := h.service.MyEvaluation(requestContext(c), authCtx, c.Query("project_type"))
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) groupSummary(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.GroupSummary(requestContext(c), authCtx, groupID, c.Query("project_type"))
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "evaluation summary retrieved", summary)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
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
	finalized, err := parseQueryBool(c, "finalized")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid finalized filter")
	}

	req := dto.EvaluationListRequest{
		ProjectType: c.Query("project_type"),
		GroupID:     groupID,
		Finalized:   finalized,
		Page:        page,
		PageSize:    pageSize,
	}

	response, err := h.service.List(requestContext(c), authCtx, req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", response)
}
