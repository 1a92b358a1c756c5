package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/srm-ap/portal-api/internal/service"
	"github.com/srm-ap/portal-api/internal/utils"
)

// proxiedHeaders are the upstream response headers forwarded verbatim on
// file downloads. Content-Range must survive for ranged requests to work.
var proxiedHeaders = []string{
	"Content-Type",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
}

// FileHandler wires the report upload and download endpoints.
type FileHandler struct {
	service service.FileService
	authz   service.AuthorizationService
	logger  zerolog.Logger
}

// NewFileHandler constructs the handler.
func NewFileHandler(service service.FileService, authz service.AuthorizationService, logger zerolog.Logger) *FileHandler {
	return &FileHandler{
		service: service,
		authz:   authz,
		logger:  logger.With().Str("component", "file_handler").Logger(),
	}
}

// Register attaches file routes.
func (h *FileHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
	router.Get("/mine", h.listMine)
	router.Get("/groups/:id", h.listByGroup)
	router.Get("/:id", h.get)
	router.Get("/:id/content", h.download)
	router.Delete("/:id", h.delete)
}

func (h *FileHandler) upload(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	kind := c.FormValue("kind")
	projectType := c.FormValue("project_type")

	record, err := h.service.Upload(requestContext(c), authCtx, file, kind, projectType)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", record)
}

func (h *FileHandler) listMine(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	files, err := h.service.ListMine(requestContext(c), authCtx)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "files retrieved", files)
}

func (h *FileHandler) listByGroup(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	files, err := h.service.ListByGroup(requestContext(c), authCtx, groupID)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "files retrieved", files)
}

func (h *FileHandler) get(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.service.Get(requestContext(c), authCtx, id)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "file retrieved", file)
}

// download proxies the stored object back to the client. Upstream status and
// range headers pass through untouched so resumable downloads keep working.
func (h *FileHandler) download(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, resp, err := h.service.Download(requestContext(c), authCtx, id, c.Get(fiber.HeaderRange))
	if err != nil {
		return utils.SendAppError(c, err)
	}

	c.Status(resp.StatusCode)
	for _, header := range proxiedHeaders {
		if value := resp.Header.Get(header); value != "" {
			c.Set(header, value)
		}
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.FileName))

	if resp.ContentLength >= 0 {
		return c.SendStream(resp.Body, int(resp.ContentLength))
	}
	return c.SendStream(resp.Body)
}

func (h *FileHandler) delete(c *fiber.Ctx) error {
	authCtx, err := authContext(c, h.authz)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), authCtx, id); err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "file deleted", fiber.Map{"id": id})
}
