package raster

import "github.com/AdenKoperczak/grib2pf/pkg/palette"

// NoDataClass is the class given to empty cells by [Contour]. It differs
// from every palette index, including [palette.BelowRange].
const NoDataClass = palette.BelowRange - 1

// Contour hollows out g in place so that only class boundaries remain.
//
// Every cell is classified with table.Index (empty cells get NoDataClass).
// For each 2x2 block whose four cells share a class, the top-left cell is
// cleared. The last row and column have no complete block and are always
// cleared.
func Contour(g *Grid, table *palette.Table) {
	w, h := g.Width, g.Height
	class := make([]int, len(g.count))
	for i := range class {
		if v, ok := g.valueAt(i); ok {
			class[i] = table.Index(v)
		} else {
			class[i] = NoDataClass
		}
	}

	for y := 0; y < h-1; y++ {
		row := y * w
		for x := 0; x < w-1; x++ {
			c := class[row+x]
			if class[row+x+1] == c && class[row+w+x] == c && class[row+w+x+1] == c {
				g.count[row+x] = 0
			}
		}
	}

	for x := 0; x < w; x++ {
		g.count[(h-1)*w+x] = 0
	}
	for y := 0; y < h; y++ {
		g.count[y*w+w-1] = 0
	}
}
