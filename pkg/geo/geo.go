// Package geo holds the geographic types shared by the renderer and the
// conformal latitude projection used to place samples on a pixel grid.
//
// Longitudes are never normalized on the way in. GRIB products report them
// on whatever branch the producer chose (0..360 for MRMS, -180..180 for
// others), and a bounding box that straddles the antimeridian is only
// representable when its east bound is allowed to exceed 180. Use
// [NormalizeLon] or [Area.Normalized] when writing coordinates out.
package geo

import "math"

// Sample is one decoded observation.
type Sample struct {
	Lat   float64
	Lon   float64
	Value float64
}

// Area is a geographic bounding box. LonL and LonR are not normalized; LonR
// may exceed 180 for boxes that cross the antimeridian.
type Area struct {
	LonL float64 `json:"lonL" bson:"lonL"`
	LonR float64 `json:"lonR" bson:"lonR"`
	LatT float64 `json:"latT" bson:"latT"`
	LatB float64 `json:"latB" bson:"latB"`
}

// Span returns the longitude extent of the box in degrees.
func (a Area) Span() float64 { return a.LonR - a.LonL }

// Equal reports whether every bound of a and b differs by at most eps.
func (a Area) Equal(b Area, eps float64) bool {
	return math.Abs(a.LonL-b.LonL) <= eps &&
		math.Abs(a.LonR-b.LonR) <= eps &&
		math.Abs(a.LatT-b.LatT) <= eps &&
		math.Abs(a.LatB-b.LatB) <= eps
}

// Normalized returns the box with both longitudes mapped into [-180, 180)
// and every bound rounded to 3 decimals, the form placefiles expect.
func (a Area) Normalized() Area {
	return Area{
		LonL: round3(NormalizeLon(a.LonL)),
		LonR: round3(NormalizeLon(a.LonR)),
		LatT: round3(a.LatT),
		LatB: round3(a.LatB),
	}
}

// NormalizeLon maps lon into [-180, 180).
func NormalizeLon(lon float64) float64 {
	return posmod(lon+180, 360) - 180
}

func posmod(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Extent accumulates the bounding box of a set of samples. The zero value
// is an empty extent.
type Extent struct {
	area Area
	n    int
}

// Add grows the extent to include (lat, lon).
func (e *Extent) Add(lat, lon float64) {
	if e.n == 0 {
		e.area = Area{LonL: lon, LonR: lon, LatT: lat, LatB: lat}
	} else {
		e.area.LonL = min(e.area.LonL, lon)
		e.area.LonR = max(e.area.LonR, lon)
		e.area.LatT = max(e.area.LatT, lat)
		e.area.LatB = min(e.area.LatB, lat)
	}
	e.n++
}

// Len returns the number of points added.
func (e *Extent) Len() int { return e.n }

// Area returns the accumulated box. It is the zero Area when nothing was
// added.
func (e *Extent) Area() Area { return e.area }

// ExtentOf returns the bounding box of samples and whether there were any.
func ExtentOf(samples []Sample) (Area, bool) {
	var e Extent
	for _, s := range samples {
		e.Add(s.Lat, s.Lon)
	}
	return e.Area(), e.Len() > 0
}

// Reconcile moves a user-requested box onto the longitude branch of the
// data it will be drawn from.
//
// The west bound becomes the alias (custom.LonL shifted by a multiple of
// 360) lying strictly inside the data's longitude extent, or the alias
// nearest the data's centre when none does. The east bound becomes the
// first alias of custom.LonR east of the chosen west bound, so the result
// always spans between 0 (exclusive) and 360 (inclusive) degrees. A box
// from 160 to -160 therefore reconciles to 160..200 rather than a 320
// degree span the wrong way round, and a box from 20 to 10 reconciles to a
// 350 degree span crossing the antimeridian. Bounds naming the same
// meridian (0 to 360) come out as the whole globe; errors.ValidateBounds
// rejects the degenerate left == right before it reaches here. Latitudes
// are returned unchanged.
func Reconcile(custom, data Area) Area {
	centre := (data.LonL + data.LonR) / 2
	base := custom.LonL + 360*math.Round((centre-custom.LonL)/360)

	west := base
	for _, cand := range []float64{base, base - 360, base + 360} {
		if cand > data.LonL && cand < data.LonR {
			west = cand
			break
		}
	}

	span := posmod(custom.LonR-west, 360)
	if span == 0 {
		span = 360
	}
	return Area{
		LonL: west,
		LonR: west + span,
		LatT: custom.LatT,
		LatB: custom.LatB,
	}
}
