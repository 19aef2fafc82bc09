package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/plotstream/config"
	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/metric"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/render"
)

// Bridge republishes parameter changes and artifact events to NATS so
// external observers (recorders, dashboards) can follow exploration
// activity without holding a WebSocket session. All publish methods are
// safe on a nil receiver, so the bridge is optional wiring.
type Bridge struct {
	conn    *nats.Conn
	prefix  string
	logger  *slog.Logger
	metrics *metric.Metrics
}

// ParamEvent is published on <prefix>.param
type ParamEvent struct {
	Session   string `json:"session,omitempty"`
	Parameter string `json:"parameter"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// ArtifactEvent is published on <prefix>.artifact; the PNG stays local,
// only metadata crosses the wire
type ArtifactEvent struct {
	Session    string          `json:"session,omitempty"`
	ArtifactID string          `json:"artifact_id"`
	Generation uint64          `json:"generation"`
	Points     int             `json:"points"`
	Spec       json.RawMessage `json:"spec,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMetrics attaches the shared metrics registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bridge) {
		if registry != nil {
			b.metrics = registry.CoreMetrics()
		}
	}
}

// Connect dials NATS per the bridge configuration. Returns nil (a no-op
// bridge) when the bridge is disabled.
func Connect(cfg config.Bridge, opts ...Option) (*Bridge, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	b := &Bridge{
		prefix: cfg.SubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge")
	if b.prefix == "" {
		b.prefix = "plotstream.events"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("plotstream-bridge"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.logger.Warn("bridge disconnected", "error", err)
			b.recordStatus(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("bridge reconnected", "url", nc.ConnectedUrl())
			b.recordStatus(true)
			if b.metrics != nil {
				b.metrics.RecordBridgeReconnect()
			}
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "bridge", "Connect",
			fmt.Sprintf("dial %s: %v", cfg.URL, err))
	}

	b.conn = conn
	b.recordStatus(true)
	b.logger.Info("bridge connected", "url", conn.ConnectedUrl(), "prefix", b.prefix)
	return b, nil
}

// Close drains and closes the connection
func (b *Bridge) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.recordStatus(false)
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// PublishParamChange publishes one parameter change event
func (b *Bridge) PublishParamChange(session uuid.UUID, change param.Change) {
	if b == nil {
		return
	}
	b.publish(b.prefix+".param", ParamEvent{
		Session:   session.String(),
		Parameter: change.Name,
		Value:     change.Value,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// PublishArtifact publishes one artifact-ready event
func (b *Bridge) PublishArtifact(session uuid.UUID, artifact *render.Artifact) {
	if b == nil || artifact == nil {
		return
	}
	b.publish(b.prefix+".artifact", ArtifactEvent{
		Session:    session.String(),
		ArtifactID: artifact.ID.String(),
		Generation: artifact.Generation,
		Points:     artifact.Points,
		Spec:       json.RawMessage(artifact.Spec),
		Timestamp:  artifact.BuiltAt.Format(time.RFC3339Nano),
	})
}

func (b *Bridge) publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("event encode failed", "subject", subject, "error", err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("event publish failed", "subject", subject, "error", err)
		return
	}
	if b.metrics != nil {
		b.metrics.RecordBridgePublished(subject)
	}
}

func (b *Bridge) recordStatus(connected bool) {
	if b.metrics != nil {
		b.metrics.RecordBridgeStatus(connected)
	}
}
