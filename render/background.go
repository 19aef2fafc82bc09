package render

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Background is the fixed layer the shaded raster is composed over: either
// a solid fill or a pre-fetched basemap image scaled to the output size.
type Background struct {
	Fill  color.NRGBA
	Image image.Image
}

// BlackBackground is the default fill, matching a dark basemap
var BlackBackground = Background{Fill: color.NRGBA{A: 255}}

// Render draws the background at the given size
func (b Background) Render(width, height int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(out, out.Bounds(), image.NewUniform(b.Fill), image.Point{}, xdraw.Src)
	if b.Image != nil {
		xdraw.ApproxBiLinear.Scale(out, out.Bounds(), b.Image, b.Image.Bounds(), xdraw.Over, nil)
	}
	return out
}

// Compose draws the shaded layer over the background with alpha blending
func Compose(background, shaded *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(background.Bounds())
	xdraw.Draw(out, out.Bounds(), background, image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), shaded, image.Point{}, xdraw.Over)
	return out
}
