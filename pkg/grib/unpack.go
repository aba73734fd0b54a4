package grib

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

// unpack expands packed data into rep.count physical values,
// Y = (R + X * 2^E) / 10^D.
func unpack(rep representation, data []byte) ([]float64, error) {
	if rep.count < 0 {
		return nil, errors.New(errors.ErrCodeDecode, "negative value count")
	}
	var raw func(out []float64) error
	switch rep.template {
	case 0:
		raw = func(out []float64) error { return unpackBits(data, rep.bits, out) }
	case 41:
		raw = func(out []float64) error { return unpackPNG(data, rep.bits, out) }
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "data template 5.%d", rep.template)
	}

	out := make([]float64, rep.count)
	if rep.bits == 0 {
		v := rep.ref * math.Pow(10, -float64(rep.decScale))
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	if err := raw(out); err != nil {
		return nil, err
	}

	bin := math.Pow(2, float64(rep.binScale))
	dec := math.Pow(10, -float64(rep.decScale))
	for i, x := range out {
		out[i] = (rep.ref + x*bin) * dec
	}
	return out, nil
}

// unpackBits reads len(out) big-endian unsigned integers of width bits.
func unpackBits(data []byte, bits int, out []float64) error {
	if bits > 32 {
		return errors.New(errors.ErrCodeUnsupported, "%d bits per value", bits)
	}
	if need := (len(out)*bits + 7) / 8; len(data) < need {
		return errors.New(errors.ErrCodeDecode, "data section holds %d bytes, need %d", len(data), need)
	}

	mask := uint64(1)<<bits - 1
	var acc uint64
	nacc, pos := 0, 0
	for i := range out {
		for nacc < bits {
			acc = acc<<8 | uint64(data[pos])
			pos++
			nacc += 8
		}
		out[i] = float64((acc >> (nacc - bits)) & mask)
		nacc -= bits
	}
	return nil
}

// unpackPNG reads integers stored as the pixels of a PNG image, row-major.
func unpackPNG(data []byte, bits int, out []float64) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDecode, err, "decode PNG packed data")
	}
	b := img.Bounds()
	if b.Dx()*b.Dy() < len(out) {
		return errors.New(errors.ErrCodeDecode, "PNG of %dx%d holds fewer than %d values", b.Dx(), b.Dy(), len(out))
	}

	k := 0
	for y := b.Min.Y; y < b.Max.Y && k < len(out); y++ {
		for x := b.Min.X; x < b.Max.X && k < len(out); x++ {
			out[k] = float64(pixelValue(img, x, y, bits))
			k++
		}
	}
	return nil
}

func pixelValue(img image.Image, x, y, bits int) uint32 {
	switch m := img.(type) {
	case *image.Gray:
		v := uint32(m.GrayAt(x, y).Y)
		if bits < 8 {
			// The decoder scales low bit depths up to 8 bits.
			v = v * (1<<bits - 1) / 255
		}
		return v
	case *image.Gray16:
		return uint32(m.Gray16At(x, y).Y)
	case *image.NRGBA:
		c := m.NRGBAAt(x, y)
		return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
	case *image.RGBA:
		c := m.RGBAAt(x, y)
		return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	default:
		r, g, b, _ := img.At(x, y).RGBA()
		return (r>>8)<<16 | (g>>8)<<8 | b>>8
	}
}
