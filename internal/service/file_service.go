package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/srm-ap/portal-api/internal/apperror"
	"github.com/srm-ap/portal-api/internal/dto"
	"github.com/srm-ap/portal-api/internal/models"
	"github.com/srm-ap/portal-api/internal/observability"
	"github.com/srm-ap/portal-api/internal/repository"
)

// FileStorage abstracts the external object store. Fetch issues a ranged
// read against the stored URL; the response is streamed through to the
// client untouched.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	Fetch(ctx context.Context, url, rangeHeader string) (*http.Response, error)
}

// FileService validates, stores and streams report PDFs.
type FileService interface {
	Upload(ctx context.Context, authCtx AuthorizationContext, file *multipart.FileHeader, kind, projectType string) (dto.FileResponse, error)
	Get(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.FileResponse, error)
	ListMine(ctx context.Context, authCtx AuthorizationContext) ([]dto.FileResponse, error)
	ListByGroup(ctx context.Context, authCtx AuthorizationContext, groupID uint) ([]dto.FileResponse, error)
	Download(ctx context.Context, authCtx AuthorizationContext, id uint, rangeHeader string) (models.FileObject, *http.Response, error)
	Delete(ctx context.Context, authCtx AuthorizationContext, id uint) error
}

type fileService struct {
	storage FileStorage
	files   repository.FileRepository
	groups  repository.GroupRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewFileService builds a new file service.
func NewFileService(storage FileStorage, files repository.FileRepository, groups repository.GroupRepository, maxSizeMB int, logger zerolog.Logger) FileService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &fileService{
		storage: storage,
		files:   files,
		groups:  groups,
		logger:  logger.With().Str("component", "file_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/srm-ap/portal-api/internal/service/file"),
	}
}

// Upload sniffs, checksums and stores one PDF. Only the real content type
// counts; the client-declared type and extension are ignored. A report
// upload attaches to the caller's group for the given project type.
func (s *fileService) Upload(ctx context.Context, authCtx AuthorizationContext, file *multipart.FileHeader, kind, projectType string) (dto.FileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "files.upload")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file != nil {
		span.SetAttributes(
			attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
			attribute.Int64("upload.request_size", file.Size),
		)
	}

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := apperror.Validation(errors.New("file is required"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.FileResponse{}, err
	}

	if kind == "" {
		kind = models.FileKindAttachment
	}
	if kind != models.FileKindReport && kind != models.FileKindAttachment {
		return dto.FileResponse{}, apperror.Validation(fmt.Errorf("unknown file kind %q", kind))
	}

	var groupID *uint
	if kind == models.FileKindReport {
		parsed := models.ProjectType(projectType)
		if !models.ValidProjectType(parsed) {
			return dto.FileResponse{}, apperror.Validation(errors.New("report uploads require a project type"))
		}
		group, err := s.groups.GetByMember(ctx, authCtx.UserID, parsed)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.FileResponse{}, apperror.BusinessRule("you are not in a group for this project type")
			}

			return dto.FileResponse{}, err
		}
		groupID = &group.ID
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(apperror.FileTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.FileResponse{}, apperror.FileTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.FileResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.FileResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(apperror.FileTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.FileResponse{}, apperror.FileTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if !mime.Is("application/pdf") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(apperror.FileNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.FileResponse{}, apperror.FileNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	sanitizedName := sanitizeFileName(file.Filename)
	span.SetAttributes(
		attribute.String("upload.sanitized_name", sanitizedName),
		attribute.Int64("upload.size_bytes", int64(buf.Len())),
	)

	url, err := s.storage.Upload(ctx, sanitizedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		s.logger.Error().Err(err).Str("file", sanitizedName).Msg("upstream upload failed")
		return dto.FileResponse{}, apperror.FileUpstream
	}

	record := models.FileObject{
		OwnerID:   authCtx.UserID,
		GroupID:   groupID,
		Kind:      kind,
		FileName:  sanitizedName,
		URL:       url,
		MimeType:  "application/pdf",
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}

	if err := s.files.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.FileResponse{}, err
	}

	observability.UploadRequests().WithLabelValues(kind).Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().
		Uint("file_id", record.ID).
		Uint("owner_id", authCtx.UserID).
		Str("kind", kind).
		Int64("size_bytes", record.SizeBytes).
		Msg("file uploaded")

	return dto.NewFileResponse(record), nil
}

func (s *fileService) Get(ctx context.Context, authCtx AuthorizationContext, id uint) (dto.FileResponse, error) {
	record, err := s.loadAuthorized(ctx, authCtx, id)
	if err != nil {
		return dto.FileResponse{}, err
	}

	return dto.NewFileResponse(record), nil
}

func (s *fileService) ListMine(ctx context.Context, authCtx AuthorizationContext) ([]dto.FileResponse, error) {
	records, err := s.files.ListByOwner(ctx, authCtx.UserID)
	if err != nil {
		return nil, err
	}

	return dto.NewFileResponseSlice(records), nil
}

func (s *fileService) ListByGroup(ctx context.Context, authCtx AuthorizationContext, groupID uint) ([]dto.FileResponse, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFoundf("group not found")
		}

		return nil, err
	}

	if err := s.requireGroupMembership(authCtx, group); err != nil {
		return nil, err
	}

	records, err := s.files.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return dto.NewFileResponseSlice(records), nil
}

// Download opens a streamed, possibly ranged, read of the stored content.
// The upstream response is handed to the caller as-is; closing its body is
// the caller's responsibility.
func (s *fileService) Download(ctx context.Context, authCtx AuthorizationContext, id uint, rangeHeader string) (models.FileObject, *http.Response, error) {
	ctx, span := s.tracer.Start(ctx, "files.download", trace.WithAttributes(
		attribute.Int("file.id", int(id)),
		attribute.Bool("file.ranged", rangeHeader != ""),
	))
	defer span.End()

	record, err := s.loadAuthorized(ctx, authCtx, id)
	if err != nil {
		return models.FileObject{}, nil, err
	}

	response, err := s.storage.Fetch(ctx, record.URL, rangeHeader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream fetch failed")
		s.logger.Error().Err(err).Uint("file_id", id).Msg("upstream fetch failed")
		return models.FileObject{}, nil, apperror.FileUpstream
	}

	if response.StatusCode >= http.StatusBadRequest {
		_ = response.Body.Close()
		span.SetStatus(codes.Error, "upstream rejected")
		s.logger.Error().Int("status", response.StatusCode).Uint("file_id", id).Msg("upstream rejected download")
		return models.FileObject{}, nil, apperror.FileUpstream
	}

	return record, response, nil
}

// Delete removes the metadata row. The stored object is left to the
// retention sweep on the storage side.
func (s *fileService) Delete(ctx context.Context, authCtx AuthorizationContext, id uint) error {
	record, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("file not found")
		}

		return err
	}

	if record.OwnerID != authCtx.UserID && !authCtx.Privileged() {
		return apperror.Forbiddenf("only the owner can delete this file")
	}

	if err := s.files.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFoundf("file not found")
		}

		return err
	}

	s.logger.Info().Uint("file_id", id).Uint("actor_id", authCtx.UserID).Msg("file deleted")

	return nil
}

// loadAuthorized fetches the record and enforces read access: the owner,
// staff, or members of the attached group.
func (s *fileService) loadAuthorized(ctx context.Context, authCtx AuthorizationContext, id uint) (models.FileObject, error) {
	record, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileObject{}, apperror.NotFoundf("file not found")
		}

		return models.FileObject{}, err
	}

	if record.OwnerID == authCtx.UserID || authCtx.Privileged() || authCtx.Role == models.RoleFaculty {
		return record, nil
	}

	if record.GroupID != nil {
		group, err := s.groups.GetByID(ctx, *record.GroupID)
		if err == nil {
			for _, member := range group.Members {
				if member.StudentID == authCtx.UserID {
					return record, nil
				}
			}
		}
	}

	return models.FileObject{}, apperror.Forbiddenf("you do not have access to this file")
}

func (s *fileService) requireGroupMembership(authCtx AuthorizationContext, group models.Group) error {
	if authCtx.Privileged() || authCtx.Role == models.RoleFaculty {
		return nil
	}

	for _, member := range group.Members {
		if member.StudentID == authCtx.UserID {
			return nil
		}
	}

	return apperror.Forbiddenf("you are not a member of this group")
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".pdf"
	}
	return base + ext
}
