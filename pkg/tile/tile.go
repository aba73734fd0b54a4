// Package tile splits a rendered image into quadrant tiles, each with its
// own geographic box.
//
// The horizontal cut is linear in longitude. The vertical cut follows the
// conformal latitude warp the image was rendered with, so the latitude of
// the middle row is found by inverting the projection rather than by
// averaging the top and bottom bounds.
package tile

import (
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// Quadrant order of the tiles returned by Split.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// Tile is an image together with the box it covers.
type Tile struct {
	Image *image.NRGBA
	Area  geo.Area
}

// Single wraps an untiled image.
func Single(img *image.NRGBA, area geo.Area) Tile {
	return Tile{Image: img, Area: area}
}

// Split cuts img into four tiles in TopLeft, TopRight, BottomLeft,
// BottomRight order. The left and top tiles get the floor of half the
// width and height; any odd pixel goes to the right and bottom tiles.
// proj must be the projector img was rendered with.
func Split(img *image.NRGBA, area geo.Area, proj geo.Projector) ([4]Tile, error) {
	var tiles [4]Tile

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 2 {
		return tiles, errors.New(errors.ErrCodeInvalidInput, "image of %dx%d is too small to tile", w, h)
	}
	if proj.Width != w || proj.Height != h {
		return tiles, errors.New(errors.ErrCodeGeometryMismatch,
			"projector is for %dx%d, image is %dx%d", proj.Width, proj.Height, w, h)
	}

	leftW, topH := w/2, h/2
	midLon := area.LonL + float64(leftW)/float64(w)*(area.LonR-area.LonL)
	midLat := proj.LatAt(float64(topH))

	rects := [4]image.Rectangle{
		TopLeft:     image.Rect(0, 0, leftW, topH),
		TopRight:    image.Rect(leftW, 0, w, topH),
		BottomLeft:  image.Rect(0, topH, leftW, h),
		BottomRight: image.Rect(leftW, topH, w, h),
	}
	tiles[TopLeft].Area = geo.Area{LonL: area.LonL, LonR: midLon, LatT: area.LatT, LatB: midLat}
	tiles[TopRight].Area = geo.Area{LonL: midLon, LonR: area.LonR, LatT: area.LatT, LatB: midLat}
	tiles[BottomLeft].Area = geo.Area{LonL: area.LonL, LonR: midLon, LatT: midLat, LatB: area.LatB}
	tiles[BottomRight].Area = geo.Area{LonL: midLon, LonR: area.LonR, LatT: midLat, LatB: area.LatB}

	var g errgroup.Group
	for i := range tiles {
		r := rects[i].Add(b.Min)
		g.Go(func() error {
			tiles[i].Image = crop(img, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return tiles, err
	}
	return tiles, nil
}

// crop copies r out of src into a compact image with origin (0, 0).
func crop(src *image.NRGBA, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	n := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		s := src.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], src.Pix[s:s+n])
	}
	return dst
}
