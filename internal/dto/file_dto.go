package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// FileResponse is the serialized representation of stored file metadata. The
// storage URL stays server-side; clients fetch content through the API.
type FileResponse struct {
	ID        uint      `json:"id"`
	OwnerID   uint      `json:"owner_id"`
	GroupID   *uint     `json:"group_id,omitempty"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFileResponse converts a model into a DTO.
func NewFileResponse(model models.FileObject) FileResponse {
	return FileResponse{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		GroupID:   model.GroupID,
		Kind:      model.Kind,
		FileName:  model.FileName,
		MimeType:  model.MimeType,
		SizeBytes: model.SizeBytes,
		Checksum:  model.Checksum,
		CreatedAt: model.CreatedAt,
	}
}

// NewFileResponseSlice converts a slice of models into DTOs.
func NewFileResponseSlice(records []models.FileObject) []FileResponse {
	responses := make([]FileResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewFileResponse(record))
	}

	return responses
}
