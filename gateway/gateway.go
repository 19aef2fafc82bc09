package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/plotstream/config"
	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/metric"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/render"
)

// ArtifactObserver is notified of every artifact a session displays. Used
// to fan artifact events out to the event bridge.
type ArtifactObserver func(session uuid.UUID, artifact *render.Artifact)

// ParamObserver is notified of every accepted parameter change in any
// session. Used to fan parameter events out to the event bridge.
type ParamObserver func(session uuid.UUID, change param.Change)

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithMetrics attaches the shared metrics registry; nil records nothing
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		if registry != nil {
			g.registry = registry
			g.metrics = registry.CoreMetrics()
		}
	}
}

// WithArtifactObserver registers a hook called for every displayed artifact
func WithArtifactObserver(fn ArtifactObserver) Option {
	return func(g *Gateway) { g.observer = fn }
}

// WithParamObserver registers a hook called for every accepted parameter
// change
func WithParamObserver(fn ParamObserver) Option {
	return func(g *Gateway) { g.paramObserver = fn }
}

// WithShutdownTimeout bounds the graceful drain when the serving context is
// cancelled; zero keeps the immediate close
func WithShutdownTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.shutdownTimeout = d }
}

// WithBackground overrides the background layer composed under every view
func WithBackground(bg render.Background) Option {
	return func(g *Gateway) { g.background = bg }
}

// Gateway is the WebSocket session server: each connection gets its own
// parameter set and explorer over the shared read-only source, so sessions
// explore independently without coordination.
type Gateway struct {
	cfg        config.Gateway
	renderCfg  config.Render
	source     datasource.Source
	schema     *param.Schema
	background render.Background

	logger          *slog.Logger
	registry        *metric.MetricsRegistry
	metrics         *metric.Metrics
	observer        ArtifactObserver
	paramObserver   ParamObserver
	shutdownTimeout time.Duration
	validator       *validator
	upgrader        websocket.Upgrader

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	server   *http.Server
	started  bool
}

// New creates a gateway serving explorers over the given source
func New(cfg config.Gateway, renderCfg config.Render, source datasource.Source, schema *param.Schema, opts ...Option) (*Gateway, error) {
	if source == nil || schema == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil source or schema"),
			"Gateway", "New", "dependency check")
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:        cfg,
		renderCfg:  renderCfg,
		source:     source,
		schema:     schema,
		background: render.BlackBackground,
		logger:     slog.Default(),
		validator:  v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// sessions carry no credentials; origin policy is the
			// deployment proxy's concern
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[uuid.UUID]*session),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g, nil
}

// Handler returns the HTTP routes: /ws for sessions, /specs for parameter
// introspection
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/specs", g.handleSpecs)
	return mux
}

// Start serves until the context is cancelled or the listener fails
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"Gateway", "Start", "lifecycle check")
	}
	g.started = true
	g.server = &http.Server{Addr: g.cfg.Addr, Handler: g.Handler()}
	server := g.server
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		if g.shutdownTimeout > 0 {
			sctx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
			defer cancel()
			_ = g.Shutdown(sctx)
			return
		}
		_ = g.Stop()
	}()

	g.logger.Info("gateway listening", "addr", g.cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Gateway", "Start",
			fmt.Sprintf("listen on %s", g.cfg.Addr))
	}
	return nil
}

// Stop closes every session and shuts the listener down
func (g *Gateway) Stop() error {
	g.mu.Lock()
	server := g.server
	g.server = nil
	sessions := make([]*session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if server != nil {
		if err := server.Close(); err != nil {
			return errors.WrapTransient(err, "Gateway", "Stop", "close listener")
		}
	}
	return nil
}

// Shutdown closes every session, then drains the listener until the context
// expires; on expiry the listener is closed outright
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	server := g.server
	g.server = nil
	sessions := make([]*session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
		return errors.WrapTransient(err, "Gateway", "Shutdown", "drain listener")
	}
	return nil
}

// SessionCount returns the number of connected sessions
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gateway) handleSpecs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, SpecsMessage{Type: MsgSpecs, Specs: g.schema.Specs()})
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s, err := g.newSession(conn)
	if err != nil {
		g.logger.Error("session setup failed", "error", err)
		_ = conn.Close()
		return
	}

	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()
	if g.metrics != nil {
		g.metrics.RecordSessionOpened()
	}
	g.logger.Info("session opened", "session", s.id, "remote", r.RemoteAddr)

	// the request context dies when this handler returns; the session
	// lives until the connection closes
	go s.run(context.Background())
}

func (g *Gateway) dropSession(s *session) {
	g.mu.Lock()
	_, present := g.sessions[s.id]
	delete(g.sessions, s.id)
	g.mu.Unlock()

	if present {
		if g.metrics != nil {
			g.metrics.RecordSessionClosed()
		}
		g.logger.Info("session closed", "session", s.id)
	}
}
