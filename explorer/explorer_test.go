package explorer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/render"
)

// gatedBuilder records every Build call and blocks until released, so tests
// control exactly when each rebuild completes.
type gatedBuilder struct {
	mu       sync.Mutex
	calls    []buildCall
	started  chan struct{}
	release  chan error
}

type buildCall struct {
	snap     param.Snapshot
	viewport *datasource.Extent
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{
		started: make(chan struct{}, 16),
		release: make(chan error, 16),
	}
}

func (b *gatedBuilder) Build(ctx context.Context, snap param.Snapshot, viewport *datasource.Extent) (*render.Artifact, error) {
	b.mu.Lock()
	b.calls = append(b.calls, buildCall{snap: snap, viewport: viewport})
	b.mu.Unlock()
	b.started <- struct{}{}

	select {
	case err := <-b.release:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ext := datasource.Extent{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}
	if viewport != nil {
		ext = *viewport
	}
	return &render.Artifact{
		ID:      uuid.New(),
		Extent:  ext,
		Params:  snap,
		BuiltAt: time.Now().UTC(),
	}, nil
}

func (b *gatedBuilder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *gatedBuilder) call(i int) buildCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[i]
}

func (b *gatedBuilder) waitStart(t *testing.T) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a build to start")
	}
}

type displayRecorder struct {
	mu        sync.Mutex
	artifacts []*render.Artifact
}

func (d *displayRecorder) record(a *render.Artifact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.artifacts = append(d.artifacts, a)
}

func (d *displayRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.artifacts)
}

func (d *displayRecorder) last() *render.Artifact {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.artifacts) == 0 {
		return nil
	}
	return d.artifacts[len(d.artifacts)-1]
}

func testExplorer(t *testing.T, b Builder, opts ...Option) (*Explorer, *param.Set) {
	t.Helper()
	schema, err := render.DefaultSchema()
	require.NoError(t, err)
	params := param.NewSet(schema)
	e, err := New(params, b, opts...)
	require.NoError(t, err)
	return e, params
}

func TestInitialBuildDisplayed(t *testing.T) {
	b := newGatedBuilder()
	disp := &displayRecorder{}
	e, _ := testExplorer(t, b, WithDisplay(disp.record))

	e.Start(context.Background())
	defer e.Stop()

	b.waitStart(t)
	assert.Equal(t, StateRebuilding, e.State())
	b.release <- nil

	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, e.State())
	assert.Nil(t, b.call(0).viewport)
	assert.Equal(t, uint64(1), disp.last().Generation)
	assert.Same(t, disp.last(), e.Current())
}

func TestParamChangeTriggersRebuild(t *testing.T) {
	b := newGatedBuilder()
	disp := &displayRecorder{}
	e, params := testExplorer(t, b, WithDisplay(disp.record))

	e.Start(context.Background())
	defer e.Stop()

	b.waitStart(t)
	b.release <- nil
	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, params.Set(render.ParamAlpha, 128))
	b.waitStart(t)
	b.release <- nil

	require.Eventually(t, func() bool { return disp.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 128, disp.last().Params.Int(render.ParamAlpha))
	assert.Equal(t, uint64(2), disp.last().Generation)
}

func TestViewportEventsCoalesce(t *testing.T) {
	b := newGatedBuilder()
	disp := &displayRecorder{}
	e, _ := testExplorer(t, b, WithDisplay(disp.record))

	e.Start(context.Background())
	defer e.Stop()

	// initial build is in flight; both viewport events arrive before it
	// completes and must collapse into a single follow-up
	b.waitStart(t)

	first := datasource.Extent{MinX: 0, MaxX: 5, MinY: 0, MaxY: 5}
	second := datasource.Extent{MinX: 2, MaxX: 8, MinY: 2, MaxY: 8}
	e.SetViewport(first)
	e.SetViewport(second)

	// wait for the run loop to absorb both events before releasing
	require.Eventually(t, func() bool {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.viewport != nil && *e.viewport == second
	}, 2*time.Second, time.Millisecond)

	b.release <- nil

	// the follow-up rebuild starts from the latest viewport
	b.waitStart(t)
	b.release <- nil

	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, b.callCount())

	// the stale initial artifact was never displayed; the one shown covers
	// the second viewport only
	assert.Equal(t, second, disp.last().Extent)
	require.NotNil(t, b.call(1).viewport)
	assert.Equal(t, second, *b.call(1).viewport)
}

func TestBurstOfEditsProducesOneFollowUp(t *testing.T) {
	b := newGatedBuilder()
	disp := &displayRecorder{}
	e, params := testExplorer(t, b, WithDisplay(disp.record))

	e.Start(context.Background())
	defer e.Stop()

	b.waitStart(t)
	b.release <- nil
	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	// first edit starts a rebuild; the rest arrive while it is in flight
	require.NoError(t, params.Set(render.ParamAlpha, 10))
	b.waitStart(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, params.Set(render.ParamAlpha, 10+i))
	}
	require.Eventually(t, func() bool { return e.pending.Size() == 1 }, 2*time.Second, time.Millisecond)
	b.release <- nil

	// exactly one follow-up, built from the latest values
	b.waitStart(t)
	b.release <- nil

	require.Eventually(t, func() bool { return disp.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, b.callCount())
	assert.Equal(t, 15, disp.last().Params.Int(render.ParamAlpha))
}

func TestRebuildErrorKeepsPreviousArtifact(t *testing.T) {
	b := newGatedBuilder()
	disp := &displayRecorder{}
	var gotErr error
	var errMu sync.Mutex
	e, params := testExplorer(t, b,
		WithDisplay(disp.record),
		WithErrorCallback(func(err error) {
			errMu.Lock()
			gotErr = err
			errMu.Unlock()
		}))

	e.Start(context.Background())
	defer e.Stop()

	b.waitStart(t)
	b.release <- nil
	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	good := e.Current()

	require.NoError(t, params.Set(render.ParamAlpha, 42))
	b.waitStart(t)
	b.release <- fmt.Errorf("backend unavailable")

	require.Eventually(t, func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return gotErr != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, disp.count())
	assert.Same(t, good, e.Current())
	assert.Equal(t, StateIdle, e.State())
}

func TestStopEndsRunLoop(t *testing.T) {
	b := newGatedBuilder()
	e, _ := testExplorer(t, b)

	e.Start(context.Background())
	b.waitStart(t)
	e.Stop()

	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not exit")
	}
}
