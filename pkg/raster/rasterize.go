// Package raster turns scattered (lat, lon, value) samples into dense
// pixel grids and colors them.
//
// [Rasterize] projects every sample onto a [Grid] using one of five
// reduction [Mode]s. [Contour] hollows out same-class interiors of a grid,
// and [Colorize] maps a grid through a palette into an image. Each call
// owns the grid it builds, so independent renders over the same samples
// can run concurrently.
package raster

import (
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// Options configures a single rasterization.
type Options struct {
	Width  int
	Height int
	Mode   Mode

	// Minimum drops samples below this value when set.
	Minimum *float64
	// Missing drops samples equal to the decoder's missing value when set.
	Missing *float64
	// Area requests a fixed output box instead of the data extent. It is
	// reconciled onto the data's longitude branch first.
	Area *geo.Area

	Logger *log.Logger
}

// Rasterize accumulates samples into a new grid and returns it along with
// the area the grid covers: the data extent, or the reconciled custom area.
//
// Samples projecting outside the image are dropped and counted in
// Grid.Stats. Consecutive samples with the same latitude reuse the
// projected row, which pays off for the latitude-major order GRIB grids
// are stored in.
func Rasterize(samples []geo.Sample, opts Options) (*Grid, geo.Area, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	grid, err := NewGrid(opts.Width, opts.Height, opts.Mode)
	if err != nil {
		return nil, geo.Area{}, err
	}

	data, ok := geo.ExtentOf(samples)
	if !ok {
		return nil, geo.Area{}, errors.New(errors.ErrCodeInvalidInput, "no samples to rasterize")
	}

	area := data
	wrap := false
	if opts.Area != nil {
		area = geo.Reconcile(*opts.Area, data)
		wrap = true
	}
	if !(area.Span() > 0) || !(area.LatT > area.LatB) {
		return nil, geo.Area{}, errors.New(errors.ErrCodeInvalidArea,
			"degenerate image area lon [%g, %g] lat [%g, %g]", area.LonL, area.LonR, area.LatB, area.LatT)
	}

	proj := geo.NewProjector(area, opts.Width, opts.Height)
	proj.Wrap = wrap
	grid.Projector = proj

	acc := accumulatorFor(opts.Mode)
	w, h := float64(opts.Width), float64(opts.Height)
	stats := Stats{Samples: len(samples)}

	lastLat := math.NaN()
	var y float64
	for _, s := range samples {
		if opts.Missing != nil && s.Value == *opts.Missing {
			stats.Missing++
			continue
		}
		if opts.Minimum != nil && s.Value < *opts.Minimum {
			stats.BelowMinimum++
			continue
		}

		if s.Lat != lastLat {
			y = proj.Y(s.Lat)
			lastLat = s.Lat
		}
		x := proj.X(s.Lon)
		if !(x >= 0 && x < w && y >= 0 && y < h) {
			stats.OutOfRange++
			continue
		}

		acc.add(grid, x, y, int(x), int(y), s.Value)
		stats.Accumulated++
	}
	grid.Stats = stats

	if stats.OutOfRange > 0 {
		logger.Debug("dropped samples outside image",
			"count", stats.OutOfRange,
			"width", opts.Width,
			"height", opts.Height)
	}
	logger.Debug("rasterized",
		"mode", opts.Mode,
		"samples", stats.Samples,
		"accumulated", stats.Accumulated,
		"missing", stats.Missing,
		"belowMinimum", stats.BelowMinimum)

	return grid, area, nil
}
