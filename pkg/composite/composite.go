// Package composite merges a continuous field and a category field into one
// image, coloring each pixel with a palette chosen by its category.
//
// The MRMS typed reflectivity product is the motivating case: merged
// reflectivity supplies the value and PrecipFlag picks between the rain,
// snow and hail palettes.
package composite

import (
	"image"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
	"github.com/AdenKoperczak/grib2pf/pkg/palette"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
)

// AreaEpsilon is the largest difference, in degrees, tolerated between the
// bounds of the two grids fed to Classify.
const AreaEpsilon = 1e-4

// Palette families used by PrecipFlagBands.
const (
	Rain = "rain"
	Snow = "snow"
	Hail = "hail"
)

// Action says how to draw a pixel. An empty Palette leaves it transparent.
type Action struct {
	Palette string
}

// Transparent is the action that draws nothing.
var Transparent = Action{}

// Band covers category codes below Upper that no earlier band claimed.
type Band struct {
	Upper  float64
	Action Action
}

// PrecipFlagBands returns the band table for the MRMS PrecipFlag product.
//
//	-3, 0  no coverage, no precipitation
//	1      warm stratiform rain
//	3      snow
//	6      convective rain
//	7      rain mixed with hail
//	10     cold stratiform rain
//	91     tropical stratiform rain
//	96     tropical convective rain
func PrecipFlagBands() []Band {
	return []Band{
		{Upper: 0.5, Action: Transparent},
		{Upper: 2, Action: Action{Palette: Rain}},
		{Upper: 4, Action: Action{Palette: Snow}},
		{Upper: 6.5, Action: Action{Palette: Rain}},
		{Upper: 7.5, Action: Action{Palette: Hail}},
		{Upper: 10.5, Action: Action{Palette: Rain}},
		{Upper: 91.5, Action: Action{Palette: Rain}},
		{Upper: 96.5, Action: Action{Palette: Rain}},
	}
}

// Lookup returns the action of the first band whose upper bound exceeds
// code, or Transparent when none does. Bands are scanned in order.
func Lookup(bands []Band, code float64) Action {
	for _, b := range bands {
		if code < b.Upper {
			return b.Action
		}
	}
	return Transparent
}

// Classify colors values through the palette its category selects.
//
// Both grids must have the same dimensions and their areas must agree to
// within AreaEpsilon; otherwise a GEOMETRY_MISMATCH error is returned. A
// pixel is transparent when either grid has no data there, or when its
// category maps to Transparent. Every palette named by bands must be
// present in palettes.
func Classify(values, categories *raster.Grid, valuesArea, categoriesArea geo.Area, bands []Band, palettes map[string]*palette.Table) (*image.NRGBA, error) {
	if values.Width != categories.Width || values.Height != categories.Height {
		return nil, errors.New(errors.ErrCodeGeometryMismatch,
			"value grid is %dx%d, category grid is %dx%d",
			values.Width, values.Height, categories.Width, categories.Height)
	}
	if !valuesArea.Equal(categoriesArea, AreaEpsilon) {
		return nil, errors.New(errors.ErrCodeGeometryMismatch,
			"value area %+v does not match category area %+v", valuesArea, categoriesArea)
	}
	for _, b := range bands {
		if b.Action.Palette != "" && palettes[b.Action.Palette] == nil {
			return nil, errors.New(errors.ErrCodeInvalidPalette, "no palette for %q", b.Action.Palette)
		}
	}

	w, h := values.Width, values.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			code, ok := categories.Value(x, y)
			if !ok {
				continue
			}
			v, ok := values.Value(x, y)
			if !ok {
				continue
			}
			act := Lookup(bands, code)
			if act.Palette == "" {
				continue
			}
			img.SetNRGBA(x, y, palettes[act.Palette].Get(v))
		}
	}
	return img, nil
}
