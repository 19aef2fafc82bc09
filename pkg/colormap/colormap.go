// Package colormap provides the fixed-resolution color ramps used to shade
// aggregated point counts. Maps are defined by control points in [0,1] and
// linearly interpolated, matching the ramps commonly used for heat-style
// shading of rasterized point data.
package colormap

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/c360/plotstream/errors"
)

// Map converts a normalized intensity in [0,1] to a color. Intensities
// outside the unit interval are clamped.
type Map interface {
	Name() string
	At(t float64) color.NRGBA
}

type stop struct {
	t float64
	c color.NRGBA
}

type rampMap struct {
	name  string
	stops []stop
}

func (m *rampMap) Name() string { return m.name }

func (m *rampMap) At(t float64) color.NRGBA {
	if t <= m.stops[0].t {
		return m.stops[0].c
	}
	last := m.stops[len(m.stops)-1]
	if t >= last.t {
		return last.c
	}
	i := sort.Search(len(m.stops), func(i int) bool { return m.stops[i].t >= t })
	lo, hi := m.stops[i-1], m.stops[i]
	f := (t - lo.t) / (hi.t - lo.t)
	return color.NRGBA{
		R: lerp(lo.c.R, hi.c.R, f),
		G: lerp(lo.c.G, hi.c.G, f),
		B: lerp(lo.c.B, hi.c.B, f),
		A: lerp(lo.c.A, hi.c.A, f),
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + f*(float64(b)-float64(a)) + 0.5)
}

var registry = map[string]*rampMap{
	// Black through red and yellow to near-white, the classic ramp for
	// shading dense point aggregates.
	"fire": {
		name: "fire",
		stops: []stop{
			{0.00, color.NRGBA{0, 0, 0, 255}},
			{0.25, color.NRGBA{120, 10, 0, 255}},
			{0.50, color.NRGBA{230, 80, 0, 255}},
			{0.75, color.NRGBA{255, 180, 40, 255}},
			{1.00, color.NRGBA{255, 255, 224, 255}},
		},
	},
	"viridis": {
		name: "viridis",
		stops: []stop{
			{0.00, color.NRGBA{68, 1, 84, 255}},
			{0.25, color.NRGBA{59, 82, 139, 255}},
			{0.50, color.NRGBA{33, 145, 140, 255}},
			{0.75, color.NRGBA{94, 201, 98, 255}},
			{1.00, color.NRGBA{253, 231, 37, 255}},
		},
	},
	"gray": {
		name: "gray",
		stops: []stop{
			{0.00, color.NRGBA{0, 0, 0, 255}},
			{1.00, color.NRGBA{255, 255, 255, 255}},
		},
	},
}

// Get returns the named colormap
func Get(name string) (Map, error) {
	m, ok := registry[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownColormap, name),
			"colormap", "Get", "lookup map")
	}
	return m, nil
}

// Names returns the available colormap names, sorted
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
