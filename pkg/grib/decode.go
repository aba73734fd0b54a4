package grib

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
)

// MissingValue marks grid points the bitmap says carry no data.
const MissingValue = 1.0e36

// Field is a decoded GRIB2 field.
type Field struct {
	Discipline int
	Category   int
	Number     int
	RefTime    time.Time
	Grid       Grid

	// HasBitmap is set when the message carried a bitmap. Samples for
	// masked points then hold MissingValue.
	HasBitmap bool
	Samples   []geo.Sample
}

// Missing returns the value masked points carry, or nil when the field has
// no bitmap. It is meant for raster.Options.Missing.
func (f *Field) Missing() *float64 {
	if !f.HasBitmap {
		return nil
	}
	v := MissingValue
	return &v
}

// Grid describes a regular latitude/longitude grid (template 3.0). Angles
// are in degrees; longitudes are kept as encoded, usually 0..360.
type Grid struct {
	Ni, Nj   int
	La1, Lo1 float64
	La2, Lo2 float64
	Di, Dj   float64
	ScanMode uint8
}

// Scanning mode flags (code table 3.4).
const (
	scanNegativeI  = 0x80
	scanPositiveJ  = 0x40
	scanConsecJ    = 0x20
	scanAlternateI = 0x10
)

// Points returns the number of grid points.
func (g Grid) Points() int { return g.Ni * g.Nj }

// LatLon returns the coordinates of grid point (i, j).
func (g Grid) LatLon(i, j int) (lat, lon float64) {
	di, dj := g.Di, -g.Dj
	if g.ScanMode&scanNegativeI != 0 {
		di = -di
	}
	if g.ScanMode&scanPositiveJ != 0 {
		dj = -dj
	}
	return g.La1 + float64(j)*dj, g.Lo1 + float64(i)*di
}

type section struct {
	num  int
	data []byte // whole section, header included
}

type representation struct {
	template int
	count    int
	ref      float64
	binScale int
	decScale int
	bits     int
}

// Decode decodes the first field of msg.
func Decode(msg Message) (*Field, error) {
	if msg.Edition != 2 {
		return nil, errors.New(errors.ErrCodeUnsupported, "GRIB edition %d", msg.Edition)
	}
	secs, err := split(msg.Data)
	if err != nil {
		return nil, err
	}

	f := &Field{Discipline: msg.Discipline}
	var rep representation
	var bitmap []byte
	var seen [8]bool

	for _, s := range secs {
		seen[s.num] = true
		switch s.num {
		case 1:
			if f.RefTime, err = parseIdentification(s.data); err != nil {
				return nil, err
			}
		case 3:
			if f.Grid, err = parseGrid(s.data); err != nil {
				return nil, err
			}
		case 4:
			if len(s.data) < 11 {
				return nil, errors.New(errors.ErrCodeDecode, "product definition section too short")
			}
			f.Category, f.Number = int(s.data[9]), int(s.data[10])
		case 5:
			if rep, err = parseRepresentation(s.data); err != nil {
				return nil, err
			}
		case 6:
			if bitmap, err = parseBitmap(s.data); err != nil {
				return nil, err
			}
			f.HasBitmap = bitmap != nil
		case 7:
			for _, n := range []int{1, 3, 5} {
				if !seen[n] {
					return nil, errors.New(errors.ErrCodeDecode, "section 7 before section %d", n)
				}
			}
			values, err := unpack(rep, s.data[5:])
			if err != nil {
				return nil, err
			}
			if f.Samples, err = f.Grid.samples(values, bitmap); err != nil {
				return nil, err
			}
			return f, nil
		}
	}
	return nil, errors.New(errors.ErrCodeDecode, "message has no data section")
}

// split cuts the sections following the indicator up to "7777".
func split(data []byte) ([]section, error) {
	var secs []section
	pos := indicatorLen
	for {
		if len(data)-pos < 4 {
			return nil, errors.New(errors.ErrCodeDecode, "truncated message at byte %d", pos)
		}
		if string(data[pos:pos+4]) == string(trail) {
			return secs, nil
		}
		if len(data)-pos < 5 {
			return nil, errors.New(errors.ErrCodeDecode, "truncated section header at byte %d", pos)
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		num := int(data[pos+4])
		if n < 5 || pos+n > len(data) || num < 1 || num > 7 {
			return nil, errors.New(errors.ErrCodeDecode, "bad section %d of %d bytes at byte %d", num, n, pos)
		}
		secs = append(secs, section{num: num, data: data[pos : pos+n]})
		pos += n
	}
}

func parseIdentification(s []byte) (time.Time, error) {
	if len(s) < 19 {
		return time.Time{}, errors.New(errors.ErrCodeDecode, "identification section too short")
	}
	year := int(binary.BigEndian.Uint16(s[12:]))
	return time.Date(year, time.Month(s[14]), int(s[15]), int(s[16]), int(s[17]), int(s[18]), 0, time.UTC), nil
}

func parseGrid(s []byte) (Grid, error) {
	if len(s) < 14 {
		return Grid{}, errors.New(errors.ErrCodeDecode, "grid definition section too short")
	}
	if tmpl := binary.BigEndian.Uint16(s[12:]); tmpl != 0 {
		return Grid{}, errors.New(errors.ErrCodeUnsupported, "grid template 3.%d", tmpl)
	}
	if len(s) < 72 {
		return Grid{}, errors.New(errors.ErrCodeDecode, "grid template 3.0 too short")
	}

	unit := 1e-6
	basic := binary.BigEndian.Uint32(s[38:])
	sub := binary.BigEndian.Uint32(s[42:])
	if basic != 0 && basic != math.MaxUint32 && sub != 0 && sub != math.MaxUint32 {
		unit = float64(basic) / float64(sub)
	}
	angle := func(off int) float64 { return float64(int32sm(s[off:])) * unit }

	g := Grid{
		Ni:       int(binary.BigEndian.Uint32(s[30:])),
		Nj:       int(binary.BigEndian.Uint32(s[34:])),
		La1:      angle(46),
		Lo1:      angle(50),
		La2:      angle(55),
		Lo2:      angle(59),
		ScanMode: s[71],
	}
	if g.Ni <= 0 || g.Nj <= 0 {
		return Grid{}, errors.New(errors.ErrCodeDecode, "grid of %dx%d points", g.Ni, g.Nj)
	}
	if g.ScanMode&(scanConsecJ|scanAlternateI) != 0 {
		return Grid{}, errors.New(errors.ErrCodeUnsupported, "scanning mode %#02x", g.ScanMode)
	}

	if di := binary.BigEndian.Uint32(s[63:]); di != math.MaxUint32 {
		g.Di = float64(di) * unit
	} else if g.Ni > 1 {
		g.Di = math.Abs(g.Lo2-g.Lo1) / float64(g.Ni-1)
	}
	if dj := binary.BigEndian.Uint32(s[67:]); dj != math.MaxUint32 {
		g.Dj = float64(dj) * unit
	} else if g.Nj > 1 {
		g.Dj = math.Abs(g.La2-g.La1) / float64(g.Nj-1)
	}

	if n := binary.BigEndian.Uint32(s[6:]); int(n) != g.Points() {
		return Grid{}, errors.New(errors.ErrCodeDecode, "grid declares %d points but is %dx%d", n, g.Ni, g.Nj)
	}
	return g, nil
}

func parseRepresentation(s []byte) (representation, error) {
	if len(s) < 11 {
		return representation{}, errors.New(errors.ErrCodeDecode, "data representation section too short")
	}
	r := representation{
		count:    int(binary.BigEndian.Uint32(s[5:])),
		template: int(binary.BigEndian.Uint16(s[9:])),
	}
	if r.template != 0 && r.template != 41 {
		return representation{}, errors.New(errors.ErrCodeUnsupported, "data template 5.%d", r.template)
	}
	if len(s) < 21 {
		return representation{}, errors.New(errors.ErrCodeDecode, "data template 5.%d too short", r.template)
	}
	r.ref = float64(math.Float32frombits(binary.BigEndian.Uint32(s[11:])))
	r.binScale = int(int16sm(s[15:]))
	r.decScale = int(int16sm(s[17:]))
	r.bits = int(s[19])
	return r, nil
}

// parseBitmap returns the bitmap bytes, or nil when the section says no
// bitmap applies.
func parseBitmap(s []byte) ([]byte, error) {
	if len(s) < 6 {
		return nil, errors.New(errors.ErrCodeDecode, "bitmap section too short")
	}
	switch ind := s[5]; ind {
	case 0:
		return s[6:], nil
	case 255:
		return nil, nil
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "bitmap indicator %d", ind)
	}
}

// samples lays values onto the grid. With a bitmap, values holds only the
// unmasked points in order.
func (g Grid) samples(values []float64, bitmap []byte) ([]geo.Sample, error) {
	n := g.Points()
	if bitmap == nil && len(values) != n {
		return nil, errors.New(errors.ErrCodeDecode, "%d values for %d grid points", len(values), n)
	}
	if bitmap != nil && len(bitmap)*8 < n {
		return nil, errors.New(errors.ErrCodeDecode, "bitmap of %d bytes for %d grid points", len(bitmap), n)
	}

	out := make([]geo.Sample, n)
	next := 0
	for j := 0; j < g.Nj; j++ {
		for i := 0; i < g.Ni; i++ {
			k := j*g.Ni + i
			lat, lon := g.LatLon(i, j)
			v := MissingValue
			if bitmap == nil || bitmap[k/8]&(0x80>>(k%8)) != 0 {
				if next >= len(values) {
					return nil, errors.New(errors.ErrCodeDecode, "bitmap selects more than %d values", len(values))
				}
				v = values[next]
				next++
			}
			out[k] = geo.Sample{Lat: lat, Lon: lon, Value: v}
		}
	}
	return out, nil
}

// int16sm and int32sm read GRIB's sign-and-magnitude integers.
func int16sm(b []byte) int16 {
	v := binary.BigEndian.Uint16(b)
	if v&0x8000 != 0 {
		return -int16(v & 0x7fff)
	}
	return int16(v)
}

func int32sm(b []byte) int32 {
	v := binary.BigEndian.Uint32(b)
	if v&0x80000000 != 0 {
		return -int32(v & 0x7fffffff)
	}
	return int32(v)
}
