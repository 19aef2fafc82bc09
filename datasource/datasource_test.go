package datasource

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pserr "github.com/c360/plotstream/errors"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	frame, err := NewFrame(
		map[string][]float64{
			ColPickupX:  {0, 1, 2, 3, 4},
			ColPickupY:  {0, 10, 20, 30, 40},
			ColDropoffX: {100, 101, 102, 103, 104},
			ColDropoffY: {200, 210, 220, 230, 240},
		},
		map[string][]int64{
			ColPassengers: {1, 2, 3, 5, 6},
			ColHour:       {0, 6, 12, 18, 23},
		},
	)
	require.NoError(t, err)
	return frame
}

func TestNewFrameLengthMismatch(t *testing.T) {
	_, err := NewFrame(
		map[string][]float64{ColPickupX: {1, 2}, ColPickupY: {1}},
		nil,
	)
	require.Error(t, err)
	assert.True(t, pserr.IsInvalid(err))
}

func TestMemorySourceColumns(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	cols := src.Columns()
	assert.Contains(t, cols, ColPickupX)
	assert.Contains(t, cols, ColDropoffY)
	assert.Contains(t, cols, ColPassengers)
	assert.Equal(t, 5, src.Rows())
}

func TestExtentPerMode(t *testing.T) {
	src := NewMemorySource(testFrame(t))

	pickup, err := src.Extent(ModePickup)
	require.NoError(t, err)
	assert.Equal(t, Extent{MinX: 0, MaxX: 4, MinY: 0, MaxY: 40}, pickup)

	dropoff, err := src.Extent(ModeDropoff)
	require.NoError(t, err)
	assert.Equal(t, Extent{MinX: 100, MaxX: 104, MinY: 200, MaxY: 240}, dropoff)
}

func TestExtentEmptyDataset(t *testing.T) {
	frame, err := NewFrame(
		map[string][]float64{ColPickupX: {}, ColPickupY: {}},
		nil,
	)
	require.NoError(t, err)
	_, err = NewMemorySource(frame).Extent(ModePickup)
	require.Error(t, err)
	assert.ErrorIs(t, err, pserr.ErrEmptyExtent)
}

func TestSelectIsLazy(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	view := src.Select(ModePickup, Filter{})
	// nothing has been scanned yet; view only records the recipe
	assert.Equal(t, ModePickup, view.Mode())

	pts, err := view.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, pts.Len())
}

func TestModeSwitchSelectsCoordinatePair(t *testing.T) {
	src := NewMemorySource(testFrame(t))

	pickup, err := src.Select(ModePickup, Filter{}).Materialize(context.Background())
	require.NoError(t, err)
	dropoff, err := src.Select(ModeDropoff, Filter{}).Materialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pickup.Len(), dropoff.Len())
	assert.Equal(t, 0.0, pickup.X[0])
	assert.Equal(t, 100.0, dropoff.X[0])
}

func TestPassengerFilter(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	pts, err := src.Select(ModePickup, Filter{
		Passengers: &IntRange{Lo: 2, Hi: 5},
	}).Materialize(context.Background())
	require.NoError(t, err)
	// passenger counts 2, 3, 5 pass; 1 and 6 do not
	require.Equal(t, 3, pts.Len())
	assert.Equal(t, []float64{1, 2, 3}, pts.X)
}

func TestHourFilter(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	hour := 12
	pts, err := src.Select(ModePickup, Filter{Hour: &hour}).Materialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pts.Len())
	assert.Equal(t, 2.0, pts.X[0])
}

func TestBoundsFilter(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	pts, err := src.Select(ModePickup, Filter{
		Bounds: &Extent{MinX: 1, MaxX: 3, MinY: 0, MaxY: 100},
	}).Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, pts.X)
}

func TestMaterializeSkipsNaN(t *testing.T) {
	frame, err := NewFrame(
		map[string][]float64{
			ColPickupX: {1, math.NaN(), 3},
			ColPickupY: {1, 2, 3},
		},
		nil,
	)
	require.NoError(t, err)
	pts, err := NewMemorySource(frame).Select(ModePickup, Filter{}).Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, pts.X)
}

func TestMaterializeMissingColumn(t *testing.T) {
	frame, err := NewFrame(
		map[string][]float64{ColPickupX: {1}, ColPickupY: {1}},
		nil,
	)
	require.NoError(t, err)
	src := NewMemorySource(frame)

	_, err = src.Select(ModeDropoff, Filter{}).Materialize(context.Background())
	assert.ErrorIs(t, err, pserr.ErrColumnMissing)

	_, err = src.Select(ModePickup, Filter{Passengers: &IntRange{Lo: 1, Hi: 2}}).
		Materialize(context.Background())
	assert.ErrorIs(t, err, pserr.ErrColumnMissing)
}

func TestMaterializeCancelled(t *testing.T) {
	src := NewMemorySource(testFrame(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Select(ModePickup, Filter{}).Materialize(ctx)
	require.Error(t, err)
}

func TestMaterializeDeterministicOrder(t *testing.T) {
	n := scanChunk*2 + 17
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = float64(i) * 2
	}
	frame, err := NewFrame(map[string][]float64{ColPickupX: xs, ColPickupY: ys}, nil)
	require.NoError(t, err)
	src := NewMemorySource(frame)

	first, err := src.Select(ModePickup, Filter{}).Materialize(context.Background())
	require.NoError(t, err)
	second, err := src.Select(ModePickup, Filter{}).Materialize(context.Background())
	require.NoError(t, err)

	require.Equal(t, n, first.Len())
	assert.Equal(t, first.X, second.X)
	// chunked scan preserves sequential row order
	assert.Equal(t, 0.0, first.X[0])
	assert.Equal(t, float64(n-1), first.X[n-1])
}

func TestExtentIntersectAndContains(t *testing.T) {
	a := Extent{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}
	b := Extent{MinX: 5, MaxX: 15, MinY: -5, MaxY: 5}
	got := a.Intersect(b)
	assert.Equal(t, Extent{MinX: 5, MaxX: 10, MinY: 0, MaxY: 5}, got)
	assert.True(t, got.Contains(7, 3))
	assert.False(t, got.Contains(4, 3))
	assert.False(t, got.Empty())
	assert.True(t, a.Intersect(Extent{MinX: 20, MaxX: 30, MinY: 0, MaxY: 1}).Empty())
}
