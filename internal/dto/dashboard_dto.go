package dto

import "time"

// DashboardResponse aggregates portal-wide counts for coordinators and
// admins. CacheHit reports whether the payload came from Redis.
type DashboardResponse struct {
	UsersByRole          map[string]int64 `json:"users_by_role"`
	ActiveGroups         int64            `json:"active_groups"`
	OpenProjects         int64            `json:"open_projects"`
	UnassignedStudents   int64            `json:"unassigned_students"`
	PendingApplications  int64            `json:"pending_applications"`
	ApprovedApplications int64            `json:"approved_applications"`
	RejectedApplications int64            `json:"rejected_applications"`
	FinalizedEvaluations int64            `json:"finalized_evaluations"`
	ActiveWindows        []WindowResponse `json:"active_windows"`
	GeneratedAt          time.Time        `json:"generated_at"`
	CacheHit             bool             `json:"cache_hit"`
}

// StudentOverviewResponse is the personal dashboard of one student: their
// group, application and evaluation for the project type they are eligible
// for, plus the live application window state.
type StudentOverviewResponse struct {
	Eligibility       string                `json:"eligibility"`
	Group             *GroupResponse        `json:"group,omitempty"`
	Application       *ApplicationResponse  `json:"application,omitempty"`
	Evaluation        *EvaluationResponse   `json:"evaluation,omitempty"`
	ApplicationWindow *WindowStatusResponse `json:"application_window,omitempty"`
	GeneratedAt       time.Time             `json:"generated_at"`
}
