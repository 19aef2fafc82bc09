package datasource

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c360/plotstream/errors"
)

// scanChunk is the row stride for parallel materialization. Chunks are
// merged in index order so results are deterministic regardless of how
// many workers run.
const scanChunk = 1 << 16

// Frame is the internal columnar representation shared by every Source
// implementation: float64 coordinate columns plus int64 attribute columns.
type Frame struct {
	rows    int
	floats  map[string][]float64
	ints    map[string][]int64
	columns []string
}

// NewFrame builds a frame from the given columns. Every column must have
// the same length.
func NewFrame(floats map[string][]float64, ints map[string][]int64) (*Frame, error) {
	f := &Frame{
		rows:   -1,
		floats: make(map[string][]float64, len(floats)),
		ints:   make(map[string][]int64, len(ints)),
	}
	for name, col := range floats {
		if f.rows >= 0 && len(col) != f.rows {
			return nil, errors.WrapInvalid(errors.ErrDatasetUnreadable, "datasource", "NewFrame", "column "+name+" length mismatch")
		}
		f.rows = len(col)
		f.floats[name] = col
		f.columns = append(f.columns, name)
	}
	for name, col := range ints {
		if f.rows >= 0 && len(col) != f.rows {
			return nil, errors.WrapInvalid(errors.ErrDatasetUnreadable, "datasource", "NewFrame", "column "+name+" length mismatch")
		}
		f.rows = len(col)
		f.ints[name] = col
		f.columns = append(f.columns, name)
	}
	if f.rows < 0 {
		f.rows = 0
	}
	sort.Strings(f.columns)
	return f, nil
}

func (f *Frame) coordColumns(mode Mode) (xs, ys []float64, err error) {
	var xName, yName string
	switch mode {
	case ModePickup:
		xName, yName = ColPickupX, ColPickupY
	case ModeDropoff:
		xName, yName = ColDropoffX, ColDropoffY
	default:
		return nil, nil, errors.WrapInvalid(errors.ErrColumnMissing, "datasource", "coordColumns", "unknown mode "+string(mode))
	}
	xs, ok := f.floats[xName]
	if !ok {
		return nil, nil, errors.WrapInvalid(errors.ErrColumnMissing, "datasource", "coordColumns", "column "+xName+" not present")
	}
	ys, ok = f.floats[yName]
	if !ok {
		return nil, nil, errors.WrapInvalid(errors.ErrColumnMissing, "datasource", "coordColumns", "column "+yName+" not present")
	}
	return xs, ys, nil
}

func (f *Frame) extent(mode Mode) (Extent, error) {
	xs, ys, err := f.coordColumns(mode)
	if err != nil {
		return Extent{}, err
	}
	if f.rows == 0 {
		return Extent{}, errors.WrapInvalid(errors.ErrEmptyExtent, "datasource", "extent", "dataset has no rows")
	}
	ext := Extent{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}
	seen := false
	for i := 0; i < f.rows; i++ {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		seen = true
		ext.MinX = math.Min(ext.MinX, x)
		ext.MaxX = math.Max(ext.MaxX, x)
		ext.MinY = math.Min(ext.MinY, y)
		ext.MaxY = math.Max(ext.MaxY, y)
	}
	if !seen {
		return Extent{}, errors.WrapInvalid(errors.ErrEmptyExtent, "datasource", "extent", "all coordinates are NaN")
	}
	return ext, nil
}

// materialize evaluates a recorded query. Rows are scanned in fixed-size
// chunks across workers and the per-chunk results concatenated in index
// order, so the output ordering matches a sequential scan.
func (f *Frame) materialize(ctx context.Context, mode Mode, filter Filter) (*Points, error) {
	xs, ys, err := f.coordColumns(mode)
	if err != nil {
		return nil, err
	}

	var passengers []int64
	if filter.Passengers != nil {
		var ok bool
		passengers, ok = f.ints[ColPassengers]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrColumnMissing, "datasource", "materialize", "column "+ColPassengers+" not present")
		}
	}
	var hours []int64
	if filter.Hour != nil {
		// hour is an optional column; when absent the filter is a no-op
		hours = f.ints[ColHour]
	}

	nChunks := (f.rows + scanChunk - 1) / scanChunk
	chunks := make([]*Points, nChunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := 0; c < nChunks; c++ {
		c := c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo := c * scanChunk
			hi := lo + scanChunk
			if hi > f.rows {
				hi = f.rows
			}
			out := &Points{}
			for i := lo; i < hi; i++ {
				x, y := xs[i], ys[i]
				if math.IsNaN(x) || math.IsNaN(y) {
					continue
				}
				if passengers != nil && !filter.Passengers.Contains(passengers[i]) {
					continue
				}
				if hours != nil && hours[i] != int64(*filter.Hour) {
					continue
				}
				if filter.Bounds != nil && !filter.Bounds.Contains(x, y) {
					continue
				}
				out.X = append(out.X, x)
				out.Y = append(out.Y, y)
			}
			chunks[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WrapTransient(err, "datasource", "materialize", "scan aborted")
	}

	total := 0
	for _, ch := range chunks {
		total += ch.Len()
	}
	merged := &Points{
		X: make([]float64, 0, total),
		Y: make([]float64, 0, total),
	}
	for _, ch := range chunks {
		merged.X = append(merged.X, ch.X...)
		merged.Y = append(merged.Y, ch.Y...)
	}
	return merged, nil
}

// MemorySource serves queries from an in-memory frame. Useful for tests
// and for datasets small enough to load eagerly.
type MemorySource struct {
	mu    sync.RWMutex
	frame *Frame
}

// NewMemorySource wraps a frame as a Source
func NewMemorySource(frame *Frame) *MemorySource {
	return &MemorySource{frame: frame}
}

// Columns lists the column names present in the dataset
func (s *MemorySource) Columns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.frame.columns))
	copy(out, s.frame.columns)
	return out
}

// Rows returns the total row count
func (s *MemorySource) Rows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.rows
}

// Extent returns the full data extent of the given mode's coordinate pair
func (s *MemorySource) Extent(mode Mode) (Extent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.extent(mode)
}

// Select records a query against the current frame without reading any rows
func (s *MemorySource) Select(mode Mode, filter Filter) *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &View{frame: s.frame, mode: mode, filter: filter}
}
