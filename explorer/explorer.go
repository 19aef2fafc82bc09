package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/pkg/buffer"
	"github.com/c360/plotstream/render"
)

// State is the explorer lifecycle state
type State int

// Explorer states
const (
	StateIdle State = iota
	StateRebuilding
)

func (s State) String() string {
	if s == StateRebuilding {
		return "rebuilding"
	}
	return "idle"
}

// Trigger names the event kind that caused a rebuild
type Trigger string

// Rebuild triggers
const (
	TriggerParam    Trigger = "param"
	TriggerViewport Trigger = "viewport"
	TriggerInitial  Trigger = "initial"
)

// Builder produces one artifact from a parameter snapshot and an optional
// viewport. Satisfied by *render.Builder.
type Builder interface {
	Build(ctx context.Context, snap param.Snapshot, viewport *datasource.Extent) (*render.Artifact, error)
}

// DisplayFunc receives every artifact the explorer applies, in generation
// order
type DisplayFunc func(*render.Artifact)

// ErrorFunc receives rebuild failures; the previously displayed artifact
// stays in place
type ErrorFunc func(error)

// Option configures an Explorer
type Option func(*Explorer)

// WithDisplay sets the display surface callback
func WithDisplay(fn DisplayFunc) Option {
	return func(e *Explorer) { e.display = fn }
}

// WithErrorCallback sets the rebuild error callback
func WithErrorCallback(fn ErrorFunc) Option {
	return func(e *Explorer) { e.onError = fn }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) { e.logger = logger }
}

// WithMetrics attaches an observer; nil is valid and records nothing
func WithMetrics(m *Metrics) Option {
	return func(e *Explorer) { e.metrics = m }
}

// WithName sets the explorer's name used in logs and metric labels
func WithName(name string) Option {
	return func(e *Explorer) { e.name = name }
}

// pending is the coalesced record of events that arrived while a rebuild
// was in flight. Only the latest survives; values are re-read from the
// parameter set at rebuild start, so the record only carries the trigger.
type pendingEvent struct {
	trigger Trigger
}

type buildResult struct {
	artifact   *render.Artifact
	err        error
	generation uint64
	trigger    Trigger
	elapsed    time.Duration
}

// Explorer binds one parameter set and one builder to a display surface.
// Parameter and viewport events trigger rebuilds; while a rebuild is in
// flight further events coalesce into a single pending slot, and a new
// rebuild starts from the then-latest values as soon as the running one
// finishes. An artifact outranked by a newer rebuild request is never
// displayed.
type Explorer struct {
	name    string
	params  *param.Set
	builder Builder
	display DisplayFunc
	onError ErrorFunc
	logger  *slog.Logger
	metrics *Metrics

	changes   <-chan param.Change
	viewportC chan *datasource.Extent
	pending   *buffer.Ring[pendingEvent]

	mu       sync.RWMutex
	state    State
	viewport *datasource.Extent
	current  *render.Artifact

	generation uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an explorer bound to the given parameter set and builder
func New(params *param.Set, builder Builder, opts ...Option) (*Explorer, error) {
	if params == nil || builder == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil params or builder"),
			"Explorer", "New", "dependency check")
	}
	e := &Explorer{
		name:      "explorer",
		params:    params,
		builder:   builder,
		logger:    slog.Default(),
		viewportC: make(chan *datasource.Extent, 16),
		pending: buffer.NewRing(1,
			buffer.WithOverflowPolicy[pendingEvent](buffer.DropOldest)),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "explorer", "name", e.name)
	e.changes = params.Subscribe(16)
	return e, nil
}

// Params returns the parameter set this explorer owns
func (e *Explorer) Params() *param.Set {
	return e.params
}

// State returns the current lifecycle state
func (e *Explorer) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Current returns the most recently displayed artifact, nil before the
// first successful build
func (e *Explorer) Current() *render.Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// SetViewport requests a rebuild over the given visible window
func (e *Explorer) SetViewport(extent datasource.Extent) {
	v := extent
	e.pushViewport(&v)
}

// ClearViewport requests a full-extent rebuild
func (e *Explorer) ClearViewport() {
	e.pushViewport(nil)
}

func (e *Explorer) pushViewport(v *datasource.Extent) {
	select {
	case e.viewportC <- v:
	case <-e.done:
	}
}

// Start launches the run loop. An initial full-extent build is performed so
// the display has an artifact before any event arrives.
func (e *Explorer) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, e.cancel = context.WithCancel(ctx)
		go e.run(ctx)
	})
}

// Stop shuts the run loop down and waits for it to exit
func (e *Explorer) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel == nil {
			return
		}
		e.cancel()
		<-e.done
	})
}

// run is the single event loop: all state transitions happen here
func (e *Explorer) run(ctx context.Context) {
	defer close(e.done)

	results := make(chan buildResult, 1)
	e.startRebuild(ctx, TriggerInitial, results)

	for {
		select {
		case <-ctx.Done():
			return

		case ch, ok := <-e.changes:
			if !ok {
				return
			}
			e.logger.Debug("parameter changed", "parameter", ch.Name, "value", ch.Value)
			e.onEvent(ctx, TriggerParam, results)

		case v := <-e.viewportC:
			e.mu.Lock()
			e.viewport = v
			e.mu.Unlock()
			e.onEvent(ctx, TriggerViewport, results)

		case res := <-results:
			e.onResult(ctx, res, results)
		}
	}
}

func (e *Explorer) onEvent(ctx context.Context, trigger Trigger, results chan buildResult) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	if state == StateRebuilding {
		// coalesce: the pending slot holds at most one event, latest wins
		_ = e.pending.Write(pendingEvent{trigger: trigger})
		e.metrics.recordCoalesced()
		return
	}
	e.startRebuild(ctx, trigger, results)
}

func (e *Explorer) onResult(ctx context.Context, res buildResult, results chan buildResult) {
	e.setState(StateIdle)

	next, hasNext := e.pending.Read()

	switch {
	case res.err != nil:
		// previous artifact stays displayed
		e.logger.Error("rebuild failed",
			"trigger", res.trigger,
			"generation", res.generation,
			"error", res.err,
			"class", errors.Classify(res.err))
		e.metrics.recordRebuild(string(res.trigger), "error", res.elapsed)
		if e.onError != nil {
			e.onError(res.err)
		}

	case hasNext || res.generation < e.generation:
		// a newer rebuild was requested; this artifact is stale
		e.logger.Debug("discarding stale artifact",
			"generation", res.generation, "latest", e.generation)
		e.metrics.recordRebuild(string(res.trigger), "stale", res.elapsed)
		e.metrics.recordStaleDiscard()

	default:
		res.artifact.Generation = res.generation
		e.mu.Lock()
		e.current = res.artifact
		e.mu.Unlock()

		e.logger.Info("artifact applied",
			"artifact", res.artifact.ID,
			"generation", res.generation,
			"points", res.artifact.Points,
			"elapsed", res.elapsed)
		e.metrics.recordRebuild(string(res.trigger), "ok", res.elapsed)
		e.metrics.recordArtifact(len(res.artifact.PNG), res.artifact.Points)
		if e.display != nil {
			e.display(res.artifact)
		}
	}

	if hasNext {
		e.startRebuild(ctx, next.trigger, results)
	}
}

// startRebuild snapshots the latest parameter values and viewport, bumps the
// generation and launches the build off the loop goroutine
func (e *Explorer) startRebuild(ctx context.Context, trigger Trigger, results chan buildResult) {
	e.generation++
	gen := e.generation

	e.mu.Lock()
	e.state = StateRebuilding
	var viewport *datasource.Extent
	if e.viewport != nil {
		v := *e.viewport
		viewport = &v
	}
	e.mu.Unlock()
	e.metrics.recordState(true)

	snap := e.params.Snapshot()

	go func() {
		start := time.Now()
		art, err := e.builder.Build(ctx, snap, viewport)
		select {
		case results <- buildResult{
			artifact:   art,
			err:        err,
			generation: gen,
			trigger:    trigger,
			elapsed:    time.Since(start),
		}:
		case <-ctx.Done():
		}
	}()
}

func (e *Explorer) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.metrics.recordState(s == StateRebuilding)
}
