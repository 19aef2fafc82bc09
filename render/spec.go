package render

import (
	"encoding/json"

	"github.com/c360/plotstream/datasource"
)

// PlotSpec is the declarative description of a built view, emitted alongside
// the PNG so external surfaces (a browser canvas, a tile layer) can render
// or annotate the same result without decoding the image.
type PlotSpec struct {
	Extent datasource.Extent `json:"extent"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Layers []LayerSpec       `json:"layers"`
}

// LayerSpec describes one layer of the composed view, bottom-up
type LayerSpec struct {
	Kind     string `json:"kind"`
	Colormap string `json:"colormap,omitempty"`
	Alpha    int    `json:"alpha,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Points   int    `json:"points,omitempty"`
}

// Layer kinds
const (
	LayerBackground = "background"
	LayerShaded     = "shaded_points"
)

// Encode serializes the spec as JSON
func (p PlotSpec) Encode() ([]byte, error) {
	return json.Marshal(p)
}
