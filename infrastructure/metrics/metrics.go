// Package metrics holds the Prometheus collectors for the publish and OAuth
// flows. HTTP request metrics live in interfaces/middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	publishResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_publish_results_total",
			Help: "Terminal publish outcomes by platform.",
		},
		[]string{"platform", "status"},
	)

	// Instagram polling alone can take five minutes.
	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosspost_publish_duration_seconds",
			Help:    "Time from pending to a terminal status, by platform.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		},
		[]string{"platform"},
	)

	oauthCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_oauth_callbacks_total",
			Help: "OAuth callbacks by platform and redirect outcome.",
		},
		[]string{"platform", "outcome"},
	)

	postEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_post_events_dropped_total",
			Help: "Post status events a sink failed to accept.",
		},
		[]string{"sink"},
	)

	finalizeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_post_finalize_failures_total",
			Help: "Terminal post statuses the store did not accept after retries.",
		},
		[]string{"platform", "status"},
	)
)

func init() {
	prometheus.MustRegister(publishResults, publishDuration, oauthCallbacks, postEventsDropped, finalizeFailures)
}

// ObservePublish records one terminal publish outcome.
func ObservePublish(platform, status string, elapsed time.Duration) {
	publishResults.WithLabelValues(platform, status).Inc()
	publishDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// ObserveCallback records the redirect code a callback resolved to.
func ObserveCallback(platform, outcome string) {
	oauthCallbacks.WithLabelValues(platform, outcome).Inc()
}

func EventDropped(sink string) {
	postEventsDropped.WithLabelValues(sink).Inc()
}

// FinalizeFailed counts a post left short of its terminal status.
func FinalizeFailed(platform, status string) {
	finalizeFailures.WithLabelValues(platform, status).Inc()
}
