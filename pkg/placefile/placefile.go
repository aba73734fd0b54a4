// Package placefile writes Supercell-Wx placefiles that drape rendered
// images over the map.
//
// Each image is drawn as two textured triangles whose vertices carry a
// latitude, a longitude and the texture coordinate of the matching image
// corner.
package placefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// DefaultRefreshSeconds is how often clients reload the placefile.
const DefaultRefreshSeconds = 60

// Image is one textured quad.
type Image struct {
	URL  string
	Area geo.Area
}

// Placefile is the content of one placefile.
type Placefile struct {
	Title          string
	RefreshSeconds int
	Images         []Image
}

// corner pairs a vertex position with its texture coordinate.
type corner struct {
	top, right bool
}

// Two triangles: TL, TR, BR and TL, BR, BL.
var quad = [6]corner{
	{top: true, right: false},
	{top: true, right: true},
	{top: false, right: true},
	{top: true, right: false},
	{top: false, right: true},
	{top: false, right: false},
}

// Write encodes pf to w. Image areas are normalized to [-180, 180) and
// rounded to 3 decimals.
func Write(w io.Writer, pf Placefile) error {
	refresh := pf.RefreshSeconds
	if refresh <= 0 {
		refresh = DefaultRefreshSeconds
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Title: %s\n", pf.Title)
	fmt.Fprintf(bw, "RefreshSeconds: %d\n", refresh)

	for _, img := range pf.Images {
		a := normalize(img.Area)
		fmt.Fprintf(bw, "\nImage: %q\n", img.URL)
		for _, c := range quad {
			lat, lon, u, v := a.LatB, a.LonL, 0, 1
			if c.top {
				lat, v = a.LatT, 0
			}
			if c.right {
				lon, u = a.LonR, 1
			}
			fmt.Fprintf(bw, "    %s, %s, %d, %d\n", coord(lat), coord(lon), u, v)
		}
		bw.WriteString("End:\n")
	}
	return bw.Flush()
}

// WriteFile writes pf to path atomically so that clients polling the file
// never read a partial placefile.
func WriteFile(path string, pf Placefile) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".placefile-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create placefile")
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, pf); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "write placefile")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write placefile")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write placefile")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write placefile")
	}
	return nil
}

func normalize(a geo.Area) geo.Area {
	n := a.Normalized()
	// A box ending on the antimeridian keeps 180 rather than wrapping to -180.
	if n.LonR == -180 && a.LonR > a.LonL {
		n.LonR = 180
	}
	return n
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
