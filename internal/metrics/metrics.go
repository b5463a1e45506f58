// Package metrics defines Prometheus metrics for seatsync.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatsync_http_request_duration_seconds",
			Help:    "Local state API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_http_requests_total",
			Help: "Total local state API requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seatsync_connection_state",
			Help: "1 for the current push connection state, 0 otherwise",
		},
		[]string{"state"},
	)

	ReconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_reconnect_attempts_total",
			Help: "Failed dial attempts on the push connection",
		},
	)

	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_frames_received_total",
			Help: "Inbound push frames by type",
		},
		[]string{"type"},
	)

	ListenerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_listener_failures_total",
			Help: "Event handlers that panicked or returned an error",
		},
		[]string{"event"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatsync_offline_queue_depth",
			Help: "Actions waiting in the offline queue",
		},
	)

	ReplayOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_replay_outcomes_total",
			Help: "Offline action replay attempts by outcome",
		},
		[]string{"outcome"},
	)

	SeatConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_seat_conflicts_total",
			Help: "Seat lock requests lost to another user",
		},
	)

	NotificationsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_notifications_suppressed_total",
			Help: "Inbound notifications dropped by user preferences",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ConnectionState, ReconnectAttempts, FramesReceived,
		ListenerFailures, QueueDepth, ReplayOutcomes,
		SeatConflicts, NotificationsSuppressed,
	)
}
