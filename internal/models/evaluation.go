package models

import "time"

// Internal assessment component identifiers.
const (
	AssessmentA1       = "A1"
	AssessmentA2       = "A2"
	AssessmentA3       = "A3"
	AssessmentExternal = "external"
)

// Evaluation holds one student's rubric marks for a project type. Raw marks
// ("conduct") are stored next to their rescaled values ("convert"); the
// convert columns and totals are always recomputed server-side from the raw
// marks, never accepted from clients. LockVersion guards finalization.
type Evaluation struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	StudentID   uint        `gorm:"not null;uniqueIndex:idx_evaluation_student_type" json:"student_id"`
	GroupID     uint        `gorm:"not null;index" json:"group_id"`
	ProjectType ProjectType `gorm:"size:16;not null;uniqueIndex:idx_evaluation_student_type" json:"project_type"`

	A1Conduct *float64 `json:"a1_conduct,omitempty"`
	A1Convert float64  `gorm:"not null;default:0" json:"a1_convert"`
	A2Conduct *float64 `json:"a2_conduct,omitempty"`
	A2Convert float64  `gorm:"not null;default:0" json:"a2_convert"`
	A3Conduct *float64 `json:"a3_conduct,omitempty"`
	A3Convert float64  `gorm:"not null;default:0" json:"a3_convert"`

	ExternalReport       *float64 `json:"external_report,omitempty"`
	ExternalPresentation *float64 `json:"external_presentation,omitempty"`
	ExternalConvert      float64  `gorm:"not null;default:0" json:"external_convert"`

	InternalTotal float64 `gorm:"not null;default:0" json:"internal_total"`
	ExternalTotal float64 `gorm:"not null;default:0" json:"external_total"`
	GrandTotal    float64 `gorm:"not null;default:0" json:"grand_total"`

	Remarks     string     `gorm:"type:text" json:"remarks,omitempty"`
	Finalized   bool       `gorm:"not null;default:false" json:"finalized"`
	FinalizedBy *uint      `json:"finalized_by,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	LockVersion int        `gorm:"not null;default:0" json:"lock_version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Student     User       `gorm:"foreignKey:StudentID" json:"-"`
}

// VersionStamp returns the optimistic lock version of the row.
func (e Evaluation) VersionStamp() int {
	return e.LockVersion
}

// ExternalConduct returns the combined raw external mark (report plus
// presentation); absent components count as zero.
func (e Evaluation) ExternalConduct() float64 {
	var total float64
	if e.ExternalReport != nil {
		total += *e.ExternalReport
	}
	if e.ExternalPresentation != nil {
		total += *e.ExternalPresentation
	}
	return total
}
