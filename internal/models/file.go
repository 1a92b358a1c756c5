package models

import "time"

// File kinds tracked by the portal.
const (
	FileKindReport     = "report"
	FileKindAttachment = "attachment"
)

// FileObject stores metadata for a PDF held in external storage. Content is
// never persisted locally; the streaming proxy fetches it from the stored
// URL on demand.
type FileObject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Kind      string    `gorm:"size:32;not null;default:attachment" json:"kind"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	URL       string    `gorm:"size:512;not null" json:"-"`
	MimeType  string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	Checksum  string    `gorm:"size:128;index" json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}
