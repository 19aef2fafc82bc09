package datasource

import (
	"context"
	"fmt"
)

// Mode selects which coordinate column pair a query reads
type Mode string

// Coordinate modes
const (
	ModePickup  Mode = "pickup"
	ModeDropoff Mode = "dropoff"
)

// Valid reports whether the mode names a known coordinate pair
func (m Mode) Valid() bool {
	return m == ModePickup || m == ModeDropoff
}

// Well-known column names
const (
	ColPickupX    = "pickup_x"
	ColPickupY    = "pickup_y"
	ColDropoffX   = "dropoff_x"
	ColDropoffY   = "dropoff_y"
	ColPassengers = "passenger_count"
	ColHour       = "hour"
)

// Extent is an axis-aligned bounding window in data coordinates
type Extent struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal span of the extent
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns the vertical span of the extent
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Empty reports whether the extent has zero or negative area
func (e Extent) Empty() bool { return e.MaxX <= e.MinX || e.MaxY <= e.MinY }

// Intersect clips the extent to another window
func (e Extent) Intersect(o Extent) Extent {
	out := e
	if o.MinX > out.MinX {
		out.MinX = o.MinX
	}
	if o.MaxX < out.MaxX {
		out.MaxX = o.MaxX
	}
	if o.MinY > out.MinY {
		out.MinY = o.MinY
	}
	if o.MaxY < out.MaxY {
		out.MaxY = o.MaxY
	}
	return out
}

// Contains reports whether the point lies within the extent, inclusive
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// String formats the extent for logs
func (e Extent) String() string {
	return fmt.Sprintf("[%g,%g]x[%g,%g]", e.MinX, e.MaxX, e.MinY, e.MaxY)
}

// IntRange is an inclusive integer interval
type IntRange struct {
	Lo int64 `json:"lo"`
	Hi int64 `json:"hi"`
}

// Contains reports whether v lies within the range, inclusive
func (r IntRange) Contains(v int64) bool { return v >= r.Lo && v <= r.Hi }

// Filter restricts a selection to rows matching every non-nil field.
// Passengers filters on the passenger_count column; Hour on the optional
// hour column (a no-op when the dataset lacks it); Bounds clips to a spatial
// window in the selected mode's coordinates.
type Filter struct {
	Passengers *IntRange
	Hour       *int
	Bounds     *Extent
}

// Points is a materialized set of coordinate pairs
type Points struct {
	X []float64
	Y []float64
}

// Len returns the number of points
func (p *Points) Len() int { return len(p.X) }

// Source exposes a columnar dataset for querying. Implementations must be
// safe for concurrent readers; there is no mutation contract.
type Source interface {
	// Columns lists the column names present in the dataset
	Columns() []string
	// Extent returns the full data extent of the given mode's coordinate pair
	Extent(mode Mode) (Extent, error)
	// Select returns a lazily-evaluated view restricted to rows matching the
	// filter; nothing is read until Materialize is called
	Select(mode Mode, filter Filter) *View
	// Rows returns the total row count
	Rows() int
}

// View is a deferred query: mode and filter are recorded at Select time,
// rows are scanned at Materialize time.
type View struct {
	frame  *Frame
	mode   Mode
	filter Filter
}

// Mode returns the coordinate mode this view reads
func (v *View) Mode() Mode { return v.mode }

// Filter returns the filter this view applies
func (v *View) Filter() Filter { return v.filter }

// Materialize scans the dataset and returns the matching coordinate pairs
func (v *View) Materialize(ctx context.Context) (*Points, error) {
	return v.frame.materialize(ctx, v.mode, v.filter)
}
