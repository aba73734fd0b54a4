package raster

// accumulator folds one projected sample into a grid. (x, y) is the
// continuous pixel position and (ix, iy) the cell it truncates to; both are
// already known to be inside the grid.
type accumulator interface {
	add(g *Grid, x, y float64, ix, iy int, v float64)
}

func accumulatorFor(m Mode) accumulator {
	switch m {
	case Nearest:
		return nearest{}
	case NearestFast:
		return nearestFast{}
	case Max:
		return extreme{max: true}
	case Min:
		return extreme{}
	default:
		return average{}
	}
}

type average struct{}

func (average) add(g *Grid, _, _ float64, ix, iy int, v float64) {
	i := g.index(ix, iy)
	g.value[i] += v
	g.count[i]++
}

type extreme struct {
	max bool
}

func (e extreme) add(g *Grid, _, _ float64, ix, iy int, v float64) {
	i := g.index(ix, iy)
	if g.count[i] == 0 || (e.max && v > g.value[i]) || (!e.max && v < g.value[i]) {
		g.value[i] = v
	}
	g.count[i]++
}

type nearest struct{}

func (nearest) add(g *Grid, x, y float64, ix, iy int, v float64) {
	for ny := max(iy-1, 0); ny <= min(iy+1, g.Height-1); ny++ {
		for nx := max(ix-1, 0); nx <= min(ix+1, g.Width-1); nx++ {
			closer(g, x, y, nx, ny, v)
		}
	}
}

type nearestFast struct{}

func (nearestFast) add(g *Grid, x, y float64, ix, iy int, v float64) {
	closer(g, x, y, ix, iy, v)
}

// closer writes v into cell (cx, cy) if the cell is empty or the sample at
// (x, y) is strictly closer to its centre than the current occupant.
func closer(g *Grid, x, y float64, cx, cy int, v float64) {
	dx := x - (float64(cx) + 0.5)
	dy := y - (float64(cy) + 0.5)
	d := dx*dx + dy*dy

	i := g.index(cx, cy)
	if g.count[i] != 0 && d >= g.dist[i] {
		return
	}
	g.value[i] = v
	g.dist[i] = d
	g.count[i]++
}
