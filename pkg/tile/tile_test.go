package tile

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// numbered returns a w x h image whose pixel (x, y) is (x, y, 0, 255).
func numbered(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestSplitMidpoints(t *testing.T) {
	area := geo.Area{LonL: 0, LonR: 10, LatT: 60, LatB: 0}
	proj := geo.NewProjector(area, 100, 100)

	tiles, err := Split(numbered(100, 100), area, proj)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	midLon := tiles[TopLeft].Area.LonR
	if midLon != 5 {
		t.Errorf("midLon = %v, want 5", midLon)
	}

	midLat := tiles[TopLeft].Area.LatB
	if row := proj.Y(midLat); math.Abs(row-50) > 1 {
		t.Errorf("Y(midLat) = %v, want 50 within one pixel", row)
	}
	// The warp pushes the middle row north of the linear midpoint.
	if midLat <= 30 {
		t.Errorf("midLat = %v, want > 30", midLat)
	}
}

func TestSplitAreas(t *testing.T) {
	area := geo.Area{LonL: -130, LonR: -60, LatT: 55, LatB: 20}
	proj := geo.NewProjector(area, 70, 40)

	tiles, err := Split(numbered(70, 40), area, proj)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	midLon := tiles[TopLeft].Area.LonR
	midLat := tiles[TopLeft].Area.LatB
	want := [4]geo.Area{
		{LonL: -130, LonR: midLon, LatT: 55, LatB: midLat},
		{LonL: midLon, LonR: -60, LatT: 55, LatB: midLat},
		{LonL: -130, LonR: midLon, LatT: midLat, LatB: 20},
		{LonL: midLon, LonR: -60, LatT: midLat, LatB: 20},
	}
	for i := range want {
		if tiles[i].Area != want[i] {
			t.Errorf("tiles[%d].Area = %+v, want %+v", i, tiles[i].Area, want[i])
		}
	}
	if midLat <= 20 || midLat >= 55 {
		t.Errorf("midLat = %v, want inside (20, 55)", midLat)
	}
}

func TestSplitOddDimensions(t *testing.T) {
	area := geo.Area{LonL: 0, LonR: 5, LatT: 3, LatB: 0}
	proj := geo.NewProjector(area, 5, 3)

	tiles, err := Split(numbered(5, 3), area, proj)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	sizes := [4]image.Point{{2, 1}, {3, 1}, {2, 2}, {3, 2}}
	origins := [4]image.Point{{0, 0}, {2, 0}, {0, 1}, {2, 1}}
	for i, tl := range tiles {
		b := tl.Image.Bounds()
		if b.Min != (image.Point{}) || b.Size() != sizes[i] {
			t.Errorf("tiles[%d] bounds = %v, want size %v at origin", i, b, sizes[i])
			continue
		}
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				want := color.NRGBA{uint8(origins[i].X + x), uint8(origins[i].Y + y), 0, 255}
				if got := tl.Image.NRGBAAt(x, y); got != want {
					t.Errorf("tiles[%d] pixel (%d, %d) = %v, want %v", i, x, y, got, want)
				}
			}
		}
	}

	if got := tiles[TopLeft].Area.LonR; got != 2 {
		t.Errorf("midLon = %v, want 2", got)
	}
}

func TestSplitErrors(t *testing.T) {
	area := geo.Area{LonL: 0, LonR: 10, LatT: 10, LatB: 0}

	_, err := Split(numbered(1, 5), area, geo.NewProjector(area, 1, 5))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Split(1x5) error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}

	_, err = Split(numbered(10, 10), area, geo.NewProjector(area, 20, 10))
	if !errors.Is(err, errors.ErrCodeGeometryMismatch) {
		t.Errorf("Split(mismatch) error = %v, want %s", err, errors.ErrCodeGeometryMismatch)
	}
}

func TestSingle(t *testing.T) {
	img := numbered(3, 3)
	area := geo.Area{LonL: 1, LonR: 2, LatT: 3, LatB: 0}

	tl := Single(img, area)
	if tl.Image != img || tl.Area != area {
		t.Errorf("Single() = %+v, want the image and area unchanged", tl)
	}
}
