package geo

import "math"

// Epsilon is subtracted from the pixel dimensions when computing scales so
// that a sample lying exactly on the far edge of the box still truncates
// into the last row or column.
const Epsilon = 0.01

// ProjectLat applies the conformal latitude warp used by web maps:
// ln(tan(pi/4 + lat*pi/360)).
func ProjectLat(lat float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + lat*math.Pi/360))
}

// UnprojectLat inverts [ProjectLat].
func UnprojectLat(y float64) float64 {
	return math.Atan(math.Exp(y))*360/math.Pi - 90
}

// Projector maps geographic coordinates to continuous pixel coordinates
// for one output image. Longitude maps linearly; latitude goes through
// [ProjectLat]. A Projector is a small value and safe to copy.
type Projector struct {
	Area   Area
	Width  int
	Height int

	XScale float64 // pixels per degree of longitude
	YScale float64 // pixels per unit of projected latitude
	YBase  float64 // ProjectLat(Area.LatT)

	// Wrap maps every longitude onto the 360 degrees east of Area.LonL
	// before scaling. Set for reconciled custom areas so that samples on
	// either side of the antimeridian land on the right column.
	Wrap bool
}

// NewProjector returns the projector for an image of width x height pixels
// covering area.
func NewProjector(area Area, width, height int) Projector {
	yBase := ProjectLat(area.LatT)
	return Projector{
		Area:   area,
		Width:  width,
		Height: height,
		XScale: (float64(width) - Epsilon) / (area.LonR - area.LonL),
		YScale: (float64(height) - Epsilon) / (ProjectLat(area.LatB) - yBase),
		YBase:  yBase,
	}
}

// X returns the continuous column of lon.
func (p Projector) X(lon float64) float64 {
	d := lon - p.Area.LonL
	if p.Wrap {
		d = posmod(d, 360)
	}
	return d * p.XScale
}

// Y returns the continuous row of lat. Row 0 is the top of the image.
func (p Projector) Y(lat float64) float64 {
	return (ProjectLat(lat) - p.YBase) * p.YScale
}

// LonAt returns the longitude at column px.
func (p Projector) LonAt(px float64) float64 {
	return p.Area.LonL + px/p.XScale
}

// LatAt returns the latitude at row py, inverting the conformal warp.
func (p Projector) LatAt(py float64) float64 {
	return UnprojectLat(py/p.YScale + p.YBase)
}
