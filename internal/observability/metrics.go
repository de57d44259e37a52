package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatMessages counts chat submissions by outcome (published, queued, system, invalid).
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_chat_messages_total",
		Help: "Total number of chat messages by outcome",
	}, []string{"outcome"})

	// ModerationDecisions counts moderator approve/reject decisions.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_moderation_decisions_total",
		Help: "Total number of moderation decisions",
	}, []string{"decision"})

	// StreamLifecycle counts stream start and end transitions.
	StreamLifecycle = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_stream_lifecycle_total",
		Help: "Total number of stream lifecycle transitions",
	}, []string{"event"})

	// ViewerTicks counts viewer simulation ticks by result.
	ViewerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_viewer_ticks_total",
		Help: "Total number of viewer simulation ticks",
	}, []string{"result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubmedia_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// StreamConnections is the gauge of push connections per stream and audience.
	StreamConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hubmedia_stream_connections",
		Help: "Number of push connections per stream and audience",
	}, []string{"stream_id", "audience"})

	// StreamEventsDelivered counts events fanned out to push connections.
	StreamEventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_stream_events_delivered_total",
		Help: "Total stream events delivered to push connections",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmedia_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// StreamLabel formats a stream id for metric labels.
func StreamLabel(streamID uint) string {
	return strconv.FormatUint(uint64(streamID), 10)
}
