package raster

import (
	"image"

	"github.com/AdenKoperczak/grib2pf/pkg/palette"
)

// Colorize maps every cell of g through table. Cells without data are fully
// transparent.
func Colorize(g *Grid, table *palette.Table) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i := range g.count {
		v, ok := g.valueAt(i)
		if !ok {
			continue
		}
		c := table.Get(v)
		p := img.Pix[i*4 : i*4+4 : i*4+4]
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	}
	return img
}
