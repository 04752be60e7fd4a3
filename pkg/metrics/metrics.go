package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job engine metrics
	JobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_jobs_submitted_total",
			Help: "Total number of background jobs submitted by operation type",
		},
		[]string{"operation"},
	)

	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_jobs_completed_total",
			Help: "Total number of background jobs finished by terminal status",
		},
		[]string{"operation", "status"},
	)

	JobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_jobs_active",
			Help: "Number of background jobs currently running",
		},
	)

	JobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_jobs_pending",
			Help: "Number of background jobs waiting for a worker",
		},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_job_duration_seconds",
			Help:    "Background job execution time in seconds by operation type",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"operation"},
	)

	// Repository metrics
	GoldenReposTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_golden_repos_total",
			Help: "Total number of registered golden repositories",
		},
	)

	ActivatedReposTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_activated_repos_total",
			Help: "Total number of activated repositories across all users",
		},
	)

	// Git operation metrics
	GitOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_git_operations_total",
			Help: "Total number of git operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GitOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_git_operation_duration_seconds",
			Help:    "Git operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Confirmation token metrics
	TokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_confirmation_tokens_issued_total",
			Help: "Total number of confirmation tokens issued for destructive operations",
		},
	)

	TokensConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_confirmation_tokens_consumed_total",
			Help: "Total number of confirmation tokens consumed",
		},
	)

	TokensRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_confirmation_tokens_rejected_total",
			Help: "Total number of invalid or expired confirmation tokens presented",
		},
	)

	// File CRUD metrics
	FileOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_file_operations_total",
			Help: "Total number of file CRUD operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Resource manager metrics
	MemoryLeakWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_memory_leak_warnings_total",
			Help: "Total number of memory leak warnings emitted by severity",
		},
		[]string{"severity"},
	)

	ResourceCleanupErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_resource_cleanup_errors_total",
			Help: "Total number of errors during scoped resource cleanup",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsCompleted)
	prometheus.MustRegister(JobsActive)
	prometheus.MustRegister(JobsPending)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(GoldenReposTotal)
	prometheus.MustRegister(ActivatedReposTotal)
	prometheus.MustRegister(GitOperationsTotal)
	prometheus.MustRegister(GitOperationDuration)
	prometheus.MustRegister(TokensIssued)
	prometheus.MustRegister(TokensConsumed)
	prometheus.MustRegister(TokensRejected)
	prometheus.MustRegister(FileOperationsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(MemoryLeakWarnings)
	prometheus.MustRegister(ResourceCleanupErrors)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
