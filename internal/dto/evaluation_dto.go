package dto

import (
	"time"

	"github.com/srm-ap/portal-api/internal/models"
)

// InternalScoreRequest records a raw internal assessment mark. The server
// derives the converted value; clients never send it.
type InternalScoreRequest struct {
	StudentID   uint     `json:"student_id" validate:"required,gt=0"`
	ProjectType string   `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	Assessment  string   `json:"assessment" validate:"required,oneof=A1 A2 A3"`
	Score       *float64 `json:"score" validate:"required"`
	Remarks     string   `json:"remarks" validate:"omitempty,max=2000"`
}

// ExternalScoreRequest records raw external marks. Report and presentation
// each run 0-50; their sum feeds the external conversion.
type ExternalScoreRequest struct {
	StudentID    uint     `json:"student_id" validate:"required,gt=0"`
	ProjectType  string   `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
	Report       *float64 `json:"report" validate:"required"`
	Presentation *float64 `json:"presentation" validate:"required"`
	Remarks      string   `json:"remarks" validate:"omitempty,max=2000"`
}

// EvaluationFinalizeRequest locks one evaluation row.
type EvaluationFinalizeRequest struct {
	StudentID   uint   `json:"student_id" validate:"required,gt=0"`
	ProjectType string `json:"project_type" validate:"required,oneof=IDP UROP CAPSTONE"`
}

// EvaluationListRequest defines filters for the staff evaluation listing.
type EvaluationListRequest struct {
	ProjectType string `validate:"omitempty,oneof=IDP UROP CAPSTONE"`
	GroupID     *uint  `validate:"omitempty"`
	Finalized   *bool
	Page        int `validate:"omitempty,gte=1"`
	PageSize    int `validate:"omitempty,gte=1,lte=100"`
}

// EvaluationResponse is the serialized representation returned to API clients.
type EvaluationResponse struct {
	ID          uint   `json:"id"`
	StudentID   uint   `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	GroupID     uint   `json:"group_id"`
	ProjectType string `json:"project_type"`

	A1Conduct *float64 `json:"a1_conduct,omitempty"`
	A1Convert float64  `json:"a1_convert"`
	A2Conduct *float64 `json:"a2_conduct,omitempty"`
	A2Convert float64  `json:"a2_convert"`
	A3Conduct *float64 `json:"a3_conduct,omitempty"`
	A3Convert float64  `json:"a3_convert"`

	ExternalReport       *float64 `json:"external_report,omitempty"`
	ExternalPresentation *float64 `json:"external_presentation,omitempty"`
	ExternalConvert      float64  `json:"external_convert"`

	InternalTotal float64 `json:"internal_total"`
	ExternalTotal float64 `json:"external_total"`
	GrandTotal    float64 `json:"grand_total"`

	Remarks     string     `json:"remarks,omitempty"`
	Finalized   bool       `json:"finalized"`
	FinalizedBy *uint      `json:"finalized_by,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EvaluationListResponse wraps a paginated evaluation response.
type EvaluationListResponse struct {
	Items      []EvaluationResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// GroupEvaluationSummaryResponse aggregates one group's evaluations.
type GroupEvaluationSummaryResponse struct {
	GroupID      uint                 `json:"group_id"`
	ProjectType  string               `json:"project_type"`
	Evaluations  []EvaluationResponse `json:"evaluations"`
	AverageTotal float64              `json:"average_total"`
	AllFinalized bool                 `json:"all_finalized"`
}

// NewEvaluationResponse converts a model into a DTO.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:          model.ID,
		StudentID:   model.StudentID,
		StudentName: model.Student.Name,
		GroupID:     model.GroupID,
		ProjectType: string(model.ProjectType),

		A1Conduct: model.A1Conduct,
		A1Convert: model.A1Convert,
		A2Conduct: model.A2Conduct,
		A2Convert: model.A2Convert,
		A3Conduct: model.A3Conduct,
		A3Convert: model.A3Convert,

		ExternalReport:       model.ExternalReport,
		ExternalPresentation: model.ExternalPresentation,
		ExternalConvert:      model.ExternalConvert,

		InternalTotal: model.InternalTotal,
		ExternalTotal: model.ExternalTotal,
		GrandTotal:    model.GrandTotal,

		Remarks:     model.Remarks,
		Finalized:   model.Finalized,
		FinalizedBy: model.FinalizedBy,
		FinalizedAt: model.FinalizedAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewEvaluationResponseSlice converts a slice of models into DTOs.
func NewEvaluationResponseSlice(evaluations []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, NewEvaluationResponse(evaluation))
	}

	return responses
}
