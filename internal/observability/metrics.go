package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	authAttemptsTotal         *prometheus.CounterVec
	windowResolutionsTotal    *prometheus.CounterVec
	gateDecisionsTotal        *prometheus.CounterVec
	applicationsSubmitted     *prometheus.CounterVec
	applicationDecisionsTotal *prometheus.CounterVec
	lockConflictsTotal        *prometheus.CounterVec
	scoresRecordedTotal       *prometheus.CounterVec
	evaluationsFinalized      *prometheus.CounterVec
	notificationsPublished    *prometheus.CounterVec
	sseClientsActive          prometheus.Gauge
	uploadLatencySeconds      prometheus.Histogram
	uploadRejectedTotal       *prometheus.CounterVec
	uploadRequestsTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the portal.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		authAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"})

		windowResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "window_resolutions_total",
			Help: "Window state resolutions by kind and resolved state.",
		}, []string{"kind", "state"})

		gateDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "window_gate_decisions_total",
			Help: "Outcomes of time-window authorization checks.",
		}, []string{"kind", "outcome"})

		applicationsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Applications submitted by project type.",
		}, []string{"project_type"})

		applicationDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "application_decisions_total",
			Help: "Application decisions by outcome.",
		}, []string{"decision"})

		lockConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimistic_lock_conflicts_total",
			Help: "Optimistic lock retries exhausted, by entity.",
		}, []string{"entity"})

		scoresRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_scores_recorded_total",
			Help: "Evaluation scores recorded by assessment slot.",
		}, []string{"assessment"})

		evaluationsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_finalized_total",
			Help: "Evaluations finalized by project type.",
		}, []string{"project_type"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications published to subscribers, by kind.",
		}, []string{"kind"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Currently connected SSE notification streams.",
		})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Latency distribution for file uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Uploads rejected before storage, by reason.",
		}, []string{"reason"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Uploads stored successfully, by file kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			authAttemptsTotal,
			windowResolutionsTotal,
			gateDecisionsTotal,
			applicationsSubmitted,
			applicationDecisionsTotal,
			lockConflictsTotal,
			scoresRecordedTotal,
			evaluationsFinalized,
			notificationsPublished,
			sseClientsActive,
			uploadLatencySeconds,
			uploadRejectedTotal,
			uploadRequestsTotal,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// RecordAuthAttempt counts one authentication attempt.
func RecordAuthAttempt(method, outcome string) {
	RegisterMetrics()
	authAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordWindowResolution counts one window state resolution.
func RecordWindowResolution(kind, state string) {
	RegisterMetrics()
	windowResolutionsTotal.WithLabelValues(kind, state).Inc()
}

// RecordGateDecision counts one window gate outcome.
func RecordGateDecision(kind, outcome string) {
	RegisterMetrics()
	gateDecisionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordApplicationSubmitted counts one submitted application.
func RecordApplicationSubmitted(projectType string) {
	RegisterMetrics()
	applicationsSubmitted.WithLabelValues(projectType).Inc()
}

// RecordApplicationDecision counts one application decision.
func RecordApplicationDecision(decision string) {
	RegisterMetrics()
	applicationDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordLockConflict counts one exhausted optimistic lock retry loop.
func RecordLockConflict(entity string) {
	RegisterMetrics()
	lockConflictsTotal.WithLabelValues(entity).Inc()
}

// RecordScoreRecorded counts one recorded evaluation score.
func RecordScoreRecorded(assessment string) {
	RegisterMetrics()
	scoresRecordedTotal.WithLabelValues(assessment).Inc()
}

// RecordEvaluationFinalized counts one finalized evaluation.
func RecordEvaluationFinalized(projectType string) {
	RegisterMetrics()
	evaluationsFinalized.WithLabelValues(projectType).Inc()
}

// NotificationsPublishedTotal exposes the published notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive exposes the gauge of connected notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadRequests exposes the stored upload counter.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}
