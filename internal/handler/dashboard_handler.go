package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// DashboardHandler wires the aggregate dashboard endpoint.
type DashboardHandler struct {
	service service.DashboardService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service service.DashboardService, authz service.AuthorizationService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches the dashboard route.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("", h.summary)
}

// summary serves the per-role aggregate view. Students get their personal
// overview; staff and admins get the portal-wide summary.
func (h *DashboardHandler) summary(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	ctx := requestContext(c)
	if authCtx.Role == models.RoleStudent {
		overview, err := h.service.StudentOverview(ctx, authCtx)
		if err != nil {
			return utils.SendAppError(c, err)
		}
		return utils.SendSuccess(c, "dashboard retrieved", overview)
	}

	summary, err := h.service.Summary(ctx)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "dashboard retrieved", summary)
}
