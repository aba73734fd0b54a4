package raster

import (
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// MaxPixels caps the cell count of a single grid.
const MaxPixels = 1 << 26

// Grid is a dense width x height accumulation buffer. A cell with a zero
// count holds no data.
//
// For Average cells value is the running sum; [Grid.Value] divides it out.
// The other modes store the winning sample directly. dist is only
// allocated for the nearest-neighbour modes.
type Grid struct {
	Width  int
	Height int
	Mode   Mode

	// Projector maps geographic coordinates onto this grid. Rasterize sets
	// it; grids built with NewGrid carry the zero value.
	Projector geo.Projector
	// Stats describes how the samples fed to Rasterize were used.
	Stats Stats

	value []float64
	dist  []float64
	count []uint32
}

// Stats counts what happened to each input sample.
type Stats struct {
	Samples      int // samples offered
	Accumulated  int // samples written into the grid
	Missing      int // dropped as the decoder's missing value
	BelowMinimum int // dropped by the minimum filter
	OutOfRange   int // projected outside the image
}

// NewGrid allocates an empty grid.
func NewGrid(width, height int, mode Mode) (*Grid, error) {
	if err := errors.ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	n := width * height
	if n > MaxPixels {
		return nil, errors.New(errors.ErrCodeAllocation, "grid of %dx%d exceeds %d cells", width, height, MaxPixels)
	}

	g := &Grid{
		Width:  width,
		Height: height,
		Mode:   mode,
		value:  make([]float64, n),
		count:  make([]uint32, n),
	}
	if mode == Nearest || mode == NearestFast {
		g.dist = make([]float64, n)
	}
	return g, nil
}

func (g *Grid) index(x, y int) int { return y*g.Width + x }

// Count returns the number of writes to the cell at (x, y).
func (g *Grid) Count(x, y int) uint32 { return g.count[g.index(x, y)] }

// Value returns the representative value of the cell at (x, y) and whether
// the cell holds data.
func (g *Grid) Value(x, y int) (float64, bool) {
	return g.valueAt(g.index(x, y))
}

func (g *Grid) valueAt(i int) (float64, bool) {
	c := g.count[i]
	if c == 0 {
		return 0, false
	}
	if g.Mode == Average {
		return g.value[i] / float64(c), true
	}
	return g.value[i], true
}

// Set stores v as the sole sample of the cell at (x, y).
func (g *Grid) Set(x, y int, v float64) {
	i := g.index(x, y)
	g.value[i] = v
	g.count[i] = 1
	if g.dist != nil {
		g.dist[i] = 0
	}
}

// Clear marks the cell at (x, y) as holding no data.
func (g *Grid) Clear(x, y int) {
	g.count[g.index(x, y)] = 0
}

// Filled returns the number of cells holding data.
func (g *Grid) Filled() int {
	n := 0
	for _, c := range g.count {
		if c != 0 {
			n++
		}
	}
	return n
}
