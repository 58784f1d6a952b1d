// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Scheduler
	TasksScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_tasks_scheduled_total",
			Help: "Delayed tasks accepted by the scheduler",
		},
		[]string{"task"},
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_tasks_finished_total",
			Help: "Delayed tasks that ran to completion, by outcome (done, failed, panic)",
		},
		[]string{"task", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_task_duration_seconds",
			Help:    "Task handler run time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	// Identity
	VerificationCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_codes_issued_total",
			Help: "Verification code issuance attempts by outcome (issued, rate_limited)",
		},
		[]string{"outcome"},
	)

	// Discussion
	DiscussionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discussion_mutations_total",
			Help: "Comment and response mutations by tree, operation and outcome",
		},
		[]string{"tree", "op", "outcome"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordTaskScheduled(task string) {
	TasksScheduled.WithLabelValues(task).Inc()
}

func RecordTaskFinished(task, outcome string, duration time.Duration) {
	TasksFinished.WithLabelValues(task, outcome).Inc()
	TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

func RecordVerificationCode(outcome string) {
	VerificationCodes.WithLabelValues(outcome).Inc()
}

// RecordDiscussion counts one mutation. err == nil counts as "ok".
func RecordDiscussion(tree, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DiscussionMutations.WithLabelValues(tree, op, outcome).Inc()
}
