// Package metrics declares the Prometheus collectors for the tracking
// pipeline. Label values are bounded: actions, outcomes, passes and API
// endpoints are fixed sets, and status codes are the handful Riot returns.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// JobsProcessed counts worker outcomes per job action.
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lp_jobs_processed_total",
			Help: "Jobs handled by the queue worker, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// JobsEnqueued counts jobs created by the detector and the snapshot API.
	JobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lp_jobs_enqueued_total",
			Help: "Jobs inserted into the queue, by action and source.",
		},
		[]string{"action", "source"},
	)

	StaleJobsRequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lp_jobs_stale_requeued_total",
			Help: "Processing jobs returned to pending after the claim timeout.",
		},
	)

	// APIResponses counts Riot API responses by endpoint and status code.
	APIResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lp_riot_api_responses_total",
			Help: "Riot API responses by endpoint and HTTP status.",
		},
		[]string{"endpoint", "status"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lp_run_duration_seconds",
			Help:    "Wall-clock duration of detector and worker runs.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(JobsProcessed, JobsEnqueued, StaleJobsRequeued, APIResponses, RunDuration)
}

func ObserveAPIResponse(endpoint string, status int) {
	APIResponses.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}
