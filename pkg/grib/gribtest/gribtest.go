// Package gribtest encodes small GRIB2 messages for tests.
package gribtest

import (
	"encoding/binary"
	"math"
)

// Grid is a regular latitude/longitude grid scanned west to east, north
// to south, starting at (La1, Lo1).
type Grid struct {
	Ni, Nj   int
	La1, Lo1 float64
	Di, Dj   float64
}

// Encode returns one GRIB2 message holding values on g with simple
// packing at 0.1 precision. NaN values are masked out by a bitmap.
// Category and number identify the product in section 4.
func Encode(g Grid, values []float64, category, number int) []byte {
	if len(values) != g.Ni*g.Nj {
		panic("gribtest: value count does not match grid")
	}

	var present []float64
	var bitmap []byte
	masked := false
	for k, v := range values {
		if k%8 == 0 {
			bitmap = append(bitmap, 0)
		}
		if math.IsNaN(v) {
			masked = true
			continue
		}
		bitmap[k/8] |= 0x80 >> (k % 8)
		present = append(present, v)
	}

	ref := math.Inf(1)
	for _, v := range present {
		ref = math.Min(ref, math.Round(v*10))
	}
	if len(present) == 0 {
		ref = 0
	}
	var packed []byte
	for _, v := range present {
		packed = binary.BigEndian.AppendUint16(packed, uint16(math.Round(v*10)-ref))
	}

	var s1 []byte
	s1 = append(s1, 0, 161, 0, 0, 2, 1, 1)
	s1 = binary.BigEndian.AppendUint16(s1, 2024)
	s1 = append(s1, 5, 7, 12, 0, 0, 0, 1)

	var s3 []byte
	s3 = append(s3, 0)
	s3 = binary.BigEndian.AppendUint32(s3, uint32(g.Ni*g.Nj))
	s3 = append(s3, 0, 0)
	s3 = binary.BigEndian.AppendUint16(s3, 0)
	s3 = append(s3, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	s3 = binary.BigEndian.AppendUint32(s3, uint32(g.Ni))
	s3 = binary.BigEndian.AppendUint32(s3, uint32(g.Nj))
	s3 = binary.BigEndian.AppendUint32(s3, 0)
	s3 = binary.BigEndian.AppendUint32(s3, math.MaxUint32)
	s3 = append(s3, sm32(micro(g.La1))...)
	s3 = append(s3, sm32(micro(g.Lo1))...)
	s3 = append(s3, 0x30)
	s3 = append(s3, sm32(micro(g.La1-float64(g.Nj-1)*g.Dj))...)
	s3 = append(s3, sm32(micro(g.Lo1+float64(g.Ni-1)*g.Di))...)
	s3 = binary.BigEndian.AppendUint32(s3, uint32(micro(g.Di)))
	s3 = binary.BigEndian.AppendUint32(s3, uint32(micro(g.Dj)))
	s3 = append(s3, 0)

	s4 := []byte{0, 0, 0, 0, byte(category), byte(number), 2}

	var s5 []byte
	s5 = binary.BigEndian.AppendUint32(s5, uint32(len(present)))
	s5 = binary.BigEndian.AppendUint16(s5, 0)
	s5 = binary.BigEndian.AppendUint32(s5, math.Float32bits(float32(ref)))
	s5 = append(s5, sm16(0)...)
	s5 = append(s5, sm16(1)...)
	s5 = append(s5, 16, 0)

	s6 := []byte{255}
	if masked {
		s6 = append([]byte{0}, bitmap...)
	}

	var body []byte
	body = append(body, section(1, s1)...)
	body = append(body, section(3, s3)...)
	body = append(body, section(4, s4)...)
	body = append(body, section(5, s5)...)
	body = append(body, section(6, s6)...)
	body = append(body, section(7, packed)...)
	body = append(body, "7777"...)

	msg := []byte("GRIB")
	msg = append(msg, 0, 0, 209, 2)
	msg = binary.BigEndian.AppendUint64(msg, uint64(16+len(body)))
	return append(msg, body...)
}

func micro(deg float64) int {
	return int(math.Round(deg * 1e6))
}

func section(num int, body []byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(5+len(body)))
	b = append(b, byte(num))
	return append(b, body...)
}

func sm16(v int) []byte {
	u := uint16(v)
	if v < 0 {
		u = uint16(-v) | 0x8000
	}
	return binary.BigEndian.AppendUint16(nil, u)
}

func sm32(v int) []byte {
	u := uint32(v)
	if v < 0 {
		u = uint32(-v) | 0x80000000
	}
	return binary.BigEndian.AppendUint32(nil, u)
}
