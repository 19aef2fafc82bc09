// Package render turns a parameter snapshot and an optional viewport into a
// rasterized artifact: filtered points are binned into a fixed-resolution
// count grid, shaded through a colormap with histogram-equalized intensity,
// and composed over a background layer. Build is deterministic, so the
// reactive binding can rebuild freely and compare generations instead of
// diffing pixels.
package render
