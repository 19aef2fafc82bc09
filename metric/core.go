package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level metrics shared by every explorer and
// gateway session
type Metrics struct {
	// Rebuild metrics
	RebuildsTotal    *prometheus.CounterVec
	RebuildDuration  *prometheus.HistogramVec
	CoalescedEvents  *prometheus.CounterVec
	StaleDiscarded   *prometheus.CounterVec
	ExplorerState    *prometheus.GaugeVec
	ArtifactBytes    *prometheus.HistogramVec
	ArtifactPoints   *prometheus.GaugeVec

	// Gateway metrics
	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	ControlMessages  *prometheus.CounterVec
	RateLimited      prometheus.Counter

	// Event bridge metrics
	BridgeConnected  prometheus.Gauge
	BridgePublished  *prometheus.CounterVec
	BridgeReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "rebuilds_total",
				Help:      "Total number of rebuilds by trigger and result",
			},
			[]string{"explorer", "trigger", "result"},
		),

		RebuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "rebuild_duration_seconds",
				Help:      "Rebuild duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"explorer"},
		),

		CoalescedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "coalesced_events_total",
				Help:      "Events absorbed into a pending rebuild while one was in flight",
			},
			[]string{"explorer"},
		),

		StaleDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "stale_artifacts_discarded_total",
				Help:      "Completed artifacts discarded because a newer rebuild was requested",
			},
			[]string{"explorer"},
		),

		ExplorerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "state",
				Help:      "Explorer state (0=idle, 1=rebuilding)",
			},
			[]string{"explorer"},
		),

		ArtifactBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "artifact_bytes",
				Help:      "Encoded artifact size in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"explorer"},
		),

		ArtifactPoints: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "plotstream",
				Subsystem: "explorer",
				Name:      "artifact_points",
				Help:      "Rows that survived filtering in the latest artifact",
			},
			[]string{"explorer"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "plotstream",
				Subsystem: "gateway",
				Name:      "sessions_active",
				Help:      "Currently connected WebSocket sessions",
			},
		),

		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "gateway",
				Name:      "sessions_total",
				Help:      "Total sessions accepted since start",
			},
		),

		ControlMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "gateway",
				Name:      "control_messages_total",
				Help:      "Control messages received by type and status",
			},
			[]string{"type", "status"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "gateway",
				Name:      "rate_limited_total",
				Help:      "Viewport events dropped by per-session rate limiting",
			},
		),

		BridgeConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "plotstream",
				Subsystem: "bridge",
				Name:      "connected",
				Help:      "Event bridge connection status (0=disconnected, 1=connected)",
			},
		),

		BridgePublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "bridge",
				Name:      "published_total",
				Help:      "Events published to the bridge by subject",
			},
			[]string{"subject"},
		),

		BridgeReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plotstream",
				Subsystem: "bridge",
				Name:      "reconnects_total",
				Help:      "Total bridge reconnections",
			},
		),
	}
}

// RecordRebuild increments the rebuild counter
func (c *Metrics) RecordRebuild(explorer, trigger, result string) {
	c.RebuildsTotal.WithLabelValues(explorer, trigger, result).Inc()
}

// RecordRebuildDuration records how long a rebuild took
func (c *Metrics) RecordRebuildDuration(explorer string, d time.Duration) {
	c.RebuildDuration.WithLabelValues(explorer).Observe(d.Seconds())
}

// RecordCoalesced increments the coalesced event counter
func (c *Metrics) RecordCoalesced(explorer string) {
	c.CoalescedEvents.WithLabelValues(explorer).Inc()
}

// RecordStaleDiscard increments the stale artifact counter
func (c *Metrics) RecordStaleDiscard(explorer string) {
	c.StaleDiscarded.WithLabelValues(explorer).Inc()
}

// RecordExplorerState updates the explorer state gauge
func (c *Metrics) RecordExplorerState(explorer string, rebuilding bool) {
	value := 0.0
	if rebuilding {
		value = 1.0
	}
	c.ExplorerState.WithLabelValues(explorer).Set(value)
}

// RecordArtifact records size and point count of a displayed artifact
func (c *Metrics) RecordArtifact(explorer string, bytes, points int) {
	c.ArtifactBytes.WithLabelValues(explorer).Observe(float64(bytes))
	c.ArtifactPoints.WithLabelValues(explorer).Set(float64(points))
}

// RecordSessionOpened tracks a new gateway session
func (c *Metrics) RecordSessionOpened() {
	c.SessionsTotal.Inc()
	c.SessionsActive.Inc()
}

// RecordSessionClosed tracks a finished gateway session
func (c *Metrics) RecordSessionClosed() {
	c.SessionsActive.Dec()
}

// RecordControlMessage increments the control message counter
func (c *Metrics) RecordControlMessage(msgType, status string) {
	c.ControlMessages.WithLabelValues(msgType, status).Inc()
}

// RecordRateLimited increments the rate limit counter
func (c *Metrics) RecordRateLimited() {
	c.RateLimited.Inc()
}

// RecordBridgeStatus updates bridge connection status
func (c *Metrics) RecordBridgeStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.BridgeConnected.Set(value)
}

// RecordBridgePublished increments the bridge publish counter
func (c *Metrics) RecordBridgePublished(subject string) {
	c.BridgePublished.WithLabelValues(subject).Inc()
}

// RecordBridgeReconnect increments the bridge reconnection counter
func (c *Metrics) RecordBridgeReconnect() {
	c.BridgeReconnects.Inc()
}
