// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the contest API.
var (
	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikicontest_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	// Auth.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_auth_attempts_total",
			Help: "Total login attempts by method and result",
		},
		[]string{"method", "result"},
	)

	// Submissions.
	SubmissionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikicontest_submissions_created_total",
			Help: "Total number of article submissions",
		},
	)

	SubmissionsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_submissions_reviewed_total",
			Help: "Total number of reviewed submissions by decision",
		},
		[]string{"decision"},
	)

	MetadataRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_metadata_refresh_total",
			Help: "Total article metadata refreshes by result",
		},
		[]string{"result"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikicontest_scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~128s
		},
		[]string{"job"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wikicontest_scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last scheduler run",
		},
		[]string{"job"},
	)

	PendingSubmissions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wikicontest_pending_submissions",
			Help: "Pending submissions per contest at the last reminder run",
		},
		[]string{"contest"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikicontest_notifications_sent_total",
			Help: "Total jury reminder notifications by result",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records a handled request and its latency.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordAuthAttempt records a login attempt.
func RecordAuthAttempt(method, result string) {
	AuthAttemptsTotal.WithLabelValues(method, result).Inc()
}

// RecordSubmissionCreated records a new submission.
func RecordSubmissionCreated() {
	SubmissionsCreatedTotal.Inc()
}

// RecordSubmissionReviewed records a review decision.
func RecordSubmissionReviewed(decision string) {
	SubmissionsReviewedTotal.WithLabelValues(decision).Inc()
}

// RecordMetadataRefresh records the outcome of refreshing one submission.
func RecordMetadataRefresh(result string) {
	MetadataRefreshTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// SetSchedulerLastRun sets the timestamp of the last run of job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// SetPendingSubmissions sets the pending count for a contest.
func SetPendingSubmissions(contest string, count int) {
	PendingSubmissions.WithLabelValues(contest).Set(float64(count))
}

// RecordNotification records a reminder notification attempt.
func RecordNotification(result string) {
	NotificationsSentTotal.WithLabelValues(result).Inc()
}
