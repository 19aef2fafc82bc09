package render

import (
	"bytes"
	"context"
	"image/png"
	"time"

	"github.com/google/uuid"

	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/pkg/colormap"
)

// Parameter names the builder reads from a snapshot
const (
	ParamMode       = "mode"
	ParamPassengers = "passengers"
	ParamColormap   = "colormap"
	ParamAlpha      = "alpha"
	ParamHour       = "hour"
)

// HourAll disables the hour filter
const HourAll = -1

// DefaultSchema declares the standard exploration parameters: coordinate
// mode, passenger count range, colormap, layer opacity and hour of day.
func DefaultSchema() (*param.Schema, error) {
	s := param.NewSchema()
	decls := []struct {
		name   string
		domain param.Domain
		def    any
		doc    string
	}{
		{ParamMode, param.Choice{Options: []string{
			string(datasource.ModePickup), string(datasource.ModeDropoff),
		}}, string(datasource.ModePickup), "coordinate pair to plot"},
		{ParamPassengers, param.Range{Min: 0, Max: 10},
			param.Span{Lo: 0, Hi: 10}, "inclusive passenger count window"},
		{ParamColormap, param.Choice{Options: colormap.Names()},
			"fire", "shading colormap"},
		{ParamAlpha, param.Integer{Min: 0, Max: 255},
			255, "shaded layer opacity"},
		{ParamHour, param.Integer{Min: HourAll, Max: 23},
			HourAll, "hour of day filter, -1 for all hours"},
	}
	for _, d := range decls {
		if err := s.Declare(d.name, d.domain, d.def, d.doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Builder turns a parameter snapshot plus an optional viewport into a
// rasterized artifact. Build is pure: identical inputs produce artifacts
// with identical raster content, extent and spec (only the ID and timestamp
// differ).
type Builder struct {
	source     datasource.Source
	width      int
	height     int
	background Background
}

// NewBuilder creates a builder rendering at the given raster size
func NewBuilder(source datasource.Source, width, height int, background Background) (*Builder, error) {
	if source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"render", "NewBuilder", "nil source")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"render", "NewBuilder", "non-positive raster dimensions")
	}
	return &Builder{source: source, width: width, height: height, background: background}, nil
}

// Build renders one artifact from the snapshot. A nil viewport renders the
// full data extent; a narrower viewport crops to that window.
func (b *Builder) Build(ctx context.Context, snap param.Snapshot, viewport *datasource.Extent) (*Artifact, error) {
	mode := datasource.Mode(snap.String(ParamMode))
	if !mode.Valid() {
		return nil, errors.WrapInvalid(errors.ErrColumnMissing,
			"render", "Build", "unknown mode "+string(mode))
	}

	cmap, err := colormap.Get(snap.String(ParamColormap))
	if err != nil {
		return nil, errors.WrapInvalid(err, "render", "Build", "colormap lookup")
	}
	alpha := snap.Int(ParamAlpha)

	extent, err := b.source.Extent(mode)
	if err != nil {
		return nil, err
	}
	if viewport != nil {
		extent = extent.Intersect(*viewport)
		if extent.Empty() {
			return nil, errors.WrapInvalid(errors.ErrEmptyExtent,
				"render", "Build", "viewport outside data extent")
		}
	}

	span := snap.Span(ParamPassengers)
	filter := datasource.Filter{
		Passengers: &datasource.IntRange{Lo: int64(span.Lo), Hi: int64(span.Hi)},
		Bounds:     &extent,
	}
	if hour := snap.Int(ParamHour); hour != HourAll {
		h := hour
		filter.Hour = &h
	}

	pts, err := b.source.Select(mode, filter).Materialize(ctx)
	if err != nil {
		return nil, err
	}

	grid, err := NewGrid(b.width, b.height, extent)
	if err != nil {
		return nil, err
	}
	if err := grid.Aggregate(ctx, pts); err != nil {
		return nil, err
	}

	composed := Compose(b.background.Render(b.width, b.height), grid.Shade(cmap, alpha))

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed); err != nil {
		return nil, errors.WrapTransient(errors.ErrRenderFailed,
			"render", "Build", "png encode: "+err.Error())
	}

	spec, err := PlotSpec{
		Extent: extent,
		Width:  b.width,
		Height: b.height,
		Layers: []LayerSpec{
			{Kind: LayerBackground},
			{
				Kind:     LayerShaded,
				Colormap: cmap.Name(),
				Alpha:    alpha,
				Mode:     string(mode),
				Points:   pts.Len(),
			},
		},
	}.Encode()
	if err != nil {
		return nil, errors.WrapTransient(err, "render", "Build", "spec encode")
	}

	return &Artifact{
		ID:      uuid.New(),
		Extent:  extent,
		PNG:     buf.Bytes(),
		Spec:    spec,
		Params:  snap,
		Points:  pts.Len(),
		BuiltAt: time.Now().UTC(),
	}, nil
}
