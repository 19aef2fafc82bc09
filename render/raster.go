package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/errors"
	"github.com/c360/plotstream/pkg/colormap"
)

// binChunk is the point stride for parallel aggregation
const binChunk = 1 << 16

// Grid is a fixed-resolution count raster over a data-coordinate window
type Grid struct {
	Width  int
	Height int
	Extent datasource.Extent
	counts []uint32
}

// NewGrid allocates a zeroed count grid over the given extent
func NewGrid(width, height int, extent datasource.Extent) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.WrapInvalid(errors.ErrRenderFailed,
			"render", "NewGrid", "non-positive raster dimensions")
	}
	if extent.Empty() {
		return nil, errors.WrapInvalid(errors.ErrEmptyExtent,
			"render", "NewGrid", "degenerate extent "+extent.String())
	}
	return &Grid{
		Width:  width,
		Height: height,
		Extent: extent,
		counts: make([]uint32, width*height),
	}, nil
}

// Count returns the aggregated count at a cell
func (g *Grid) Count(x, y int) uint32 {
	return g.counts[y*g.Width+x]
}

// Aggregate bins points into the grid, incrementing the cell each point
// falls in. Points outside the extent are ignored. Binning fans out across
// goroutines; counts use atomic adds so the result is independent of
// scheduling.
func (g *Grid) Aggregate(ctx context.Context, pts *datasource.Points) error {
	sx := float64(g.Width) / g.Extent.Width()
	sy := float64(g.Height) / g.Extent.Height()

	n := pts.Len()
	nChunks := (n + binChunk - 1) / binChunk

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for c := 0; c < nChunks; c++ {
		c := c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo := c * binChunk
			hi := lo + binChunk
			if hi > n {
				hi = n
			}
			for i := lo; i < hi; i++ {
				x, y := pts.X[i], pts.Y[i]
				if !g.Extent.Contains(x, y) {
					continue
				}
				col := int((x - g.Extent.MinX) * sx)
				if col >= g.Width {
					col = g.Width - 1
				}
				// row 0 is the top of the image, MaxY in data space
				row := int((g.Extent.MaxY - y) * sy)
				if row >= g.Height {
					row = g.Height - 1
				}
				atomic.AddUint32(&g.counts[row*g.Width+col], 1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.WrapTransient(err, "render", "Aggregate", "binning aborted")
	}
	return nil
}

// equalize maps each distinct non-zero count to a [0,1] intensity via the
// cumulative distribution of occupied cells, so sparse and dense regions
// both use the full colormap range. Zero-count cells map to -1 (unshaded).
func (g *Grid) equalize() []float64 {
	hist := make(map[uint32]int)
	occupied := 0
	for _, c := range g.counts {
		if c == 0 {
			continue
		}
		hist[c]++
		occupied++
	}

	out := make([]float64, len(g.counts))
	if occupied == 0 {
		for i := range out {
			out[i] = -1
		}
		return out
	}

	keys := make([]uint32, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	// cdf[k] counts occupied cells with value <= k
	cdf := make(map[uint32]float64, len(keys))
	cum := 0
	for _, k := range keys {
		cum += hist[k]
		cdf[k] = float64(cum)
	}

	base := cdf[keys[0]]
	span := float64(occupied) - base
	for i, c := range g.counts {
		if c == 0 {
			out[i] = -1
			continue
		}
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (cdf[c] - base) / span
	}
	return out
}

// Shade colors the grid through the colormap, scaling opacity by alpha
// (0..255). Empty cells stay fully transparent.
func (g *Grid) Shade(cmap colormap.Map, alpha int) *image.NRGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 255 {
		alpha = 255
	}
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	intensity := g.equalize()
	scale := float64(alpha) / 255.0
	for i, t := range intensity {
		if t < 0 {
			continue
		}
		c := cmap.At(t)
		c.A = uint8(math.Round(float64(c.A) * scale))
		x := i % g.Width
		y := i / g.Width
		img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
	}
	return img
}
