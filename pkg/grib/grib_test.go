package grib

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

// testMessage describes a synthetic GRIB2 message on a regular lat/lon
// grid with 1 degree spacing.
type testMessage struct {
	ni, nj   int
	la1, lo1 float64
	scan     uint8
	ref      float32
	binScale int
	decScale int
	bits     int
	template int    // 0 or 41
	packed   []byte // section 7 payload
	count    int    // values in section 7
	bitmap   []byte // nil for no bitmap
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

func sec(num int, body []byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(5+len(body)))
	b = append(b, byte(num))
	return append(b, body...)
}

func (m testMessage) build() []byte {
	var s1 []byte
	s1 = append(s1, 0, 161, 0, 0, 2, 1, 1) // centre, subcentre, tables, significance
	s1 = binary.BigEndian.AppendUint16(s1, 2024)
	s1 = append(s1, 5, 17, 12, 34, 56, 0, 1) // month..second, status, type

	var s3 []byte
	s3 = append(s3, 0)
	s3 = binary.BigEndian.AppendUint32(s3, uint32(m.ni*m.nj))
	s3 = append(s3, 0, 0)
	s3 = binary.BigEndian.AppendUint16(s3, 0)
	s3 = append(s3, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0) // shape of earth and radii
	s3 = binary.BigEndian.AppendUint32(s3, uint32(m.ni))
	s3 = binary.BigEndian.AppendUint32(s3, uint32(m.nj))
	s3 = binary.BigEndian.AppendUint32(s3, 0)
	s3 = binary.BigEndian.AppendUint32(s3, math.MaxUint32)
	s3 = append(s3, sm32(int(math.Round(m.la1*1e6)))...)
	s3 = append(s3, sm32(int(math.Round(m.lo1*1e6)))...)
	s3 = append(s3, 0x30)
	s3 = append(s3, sm32(0)...)
	s3 = append(s3, sm32(0)...)
	s3 = binary.BigEndian.AppendUint32(s3, 1e6)
	s3 = binary.BigEndian.AppendUint32(s3, 1e6)
	s3 = append(s3, m.scan)

	s4 := []byte{0, 0, 0, 0, 15, 1, 2} // nv, template 4.0, category 15, number 1, process

	var s5 []byte
	s5 = binary.BigEndian.AppendUint32(s5, uint32(m.count))
	s5 = binary.BigEndian.AppendUint16(s5, uint16(m.template))
	s5 = binary.BigEndian.AppendUint32(s5, math.Float32bits(m.ref))
	s5 = append(s5, sm16(m.binScale)...)
	s5 = append(s5, sm16(m.decScale)...)
	s5 = append(s5, byte(m.bits), 0)

	s6 := []byte{255}
	if m.bitmap != nil {
		s6 = append([]byte{0}, m.bitmap...)
	}

	var body []byte
	body = append(body, sec(1, s1)...)
	body = append(body, sec(3, s3)...)
	body = append(body, sec(4, s4)...)
	body = append(body, sec(5, s5)...)
	body = append(body, sec(6, s6)...)
	body = append(body, sec(7, m.packed)...)
	body = append(body, "7777"...)

	msg := []byte("GRIB")
	msg = append(msg, 0, 0, 209, 2)
	msg = binary.BigEndian.AppendUint64(msg, uint64(16+len(body)))
	return append(msg, body...)
}

func decodeBytes(t *testing.T, b []byte) *Field {
	t.Helper()
	msg, err := At(b, 0)
	if err != nil {
		t.Fatalf("At() error: %v", err)
	}
	f, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return f
}

func TestDecodeSimplePacking(t *testing.T) {
	m := testMessage{
		ni: 3, nj: 2, la1: 50, lo1: 250,
		ref: 10, decScale: 1, bits: 8,
		packed: []byte{0, 5, 10, 15, 20, 255},
		count:  6,
	}
	f := decodeBytes(t, m.build())

	if f.Discipline != 209 || f.Category != 15 || f.Number != 1 {
		t.Errorf("discipline/category/number = %d/%d/%d, want 209/15/1", f.Discipline, f.Category, f.Number)
	}
	if want := time.Date(2024, 5, 17, 12, 34, 56, 0, time.UTC); !f.RefTime.Equal(want) {
		t.Errorf("RefTime = %v, want %v", f.RefTime, want)
	}
	if f.HasBitmap || f.Missing() != nil {
		t.Error("field without bitmap reports one")
	}

	wantVals := []float64{1, 1.5, 2, 2.5, 3, 26.5}
	wantLat := []float64{50, 50, 50, 49, 49, 49}
	wantLon := []float64{250, 251, 252, 250, 251, 252}
	if len(f.Samples) != 6 {
		t.Fatalf("len(Samples) = %d, want 6", len(f.Samples))
	}
	for i, s := range f.Samples {
		if math.Abs(s.Value-wantVals[i]) > 1e-9 {
			t.Errorf("Samples[%d].Value = %v, want %v", i, s.Value, wantVals[i])
		}
		if math.Abs(s.Lat-wantLat[i]) > 1e-9 || math.Abs(s.Lon-wantLon[i]) > 1e-9 {
			t.Errorf("Samples[%d] at (%v, %v), want (%v, %v)", i, s.Lat, s.Lon, wantLat[i], wantLon[i])
		}
	}
}

func TestDecodeOddBitWidth(t *testing.T) {
	// Values 1..4 in 3 bits: 001 010 011 100 -> 00101001 11000000
	m := testMessage{
		ni: 4, nj: 1, la1: 10, lo1: 0,
		ref: 0, binScale: 1, bits: 3,
		packed: []byte{0x29, 0xC0},
		count:  4,
	}
	f := decodeBytes(t, m.build())

	for i, want := range []float64{2, 4, 6, 8} {
		if f.Samples[i].Value != want {
			t.Errorf("Samples[%d].Value = %v, want %v", i, f.Samples[i].Value, want)
		}
	}
}

func TestDecodeNegativeScales(t *testing.T) {
	m := testMessage{
		ni: 2, nj: 1, la1: 0, lo1: 0,
		ref: -5, binScale: -1, decScale: -1, bits: 8,
		packed: []byte{0, 4},
		count:  2,
	}
	f := decodeBytes(t, m.build())

	// (-5 + x/2) * 10
	for i, want := range []float64{-50, -30} {
		if math.Abs(f.Samples[i].Value-want) > 1e-9 {
			t.Errorf("Samples[%d].Value = %v, want %v", i, f.Samples[i].Value, want)
		}
	}
}

func TestDecodeConstantField(t *testing.T) {
	m := testMessage{ni: 2, nj: 2, la1: 0, lo1: 0, ref: 7, bits: 0, count: 4}
	f := decodeBytes(t, m.build())

	for i, s := range f.Samples {
		if s.Value != 7 {
			t.Errorf("Samples[%d].Value = %v, want 7", i, s.Value)
		}
	}
}

func TestDecodeBitmap(t *testing.T) {
	m := testMessage{
		ni: 3, nj: 2, la1: 0, lo1: 0,
		ref: 0, bits: 8,
		packed: []byte{10, 20, 30},
		count:  3,
		bitmap: []byte{0xA8}, // 101010
	}
	f := decodeBytes(t, m.build())

	if !f.HasBitmap {
		t.Fatal("HasBitmap = false")
	}
	if mv := f.Missing(); mv == nil || *mv != MissingValue {
		t.Errorf("Missing() = %v, want %v", mv, MissingValue)
	}
	want := []float64{10, MissingValue, 20, MissingValue, 30, MissingValue}
	for i, s := range f.Samples {
		if s.Value != want[i] {
			t.Errorf("Samples[%d].Value = %v, want %v", i, s.Value, want[i])
		}
	}
}

func TestDecodeScanModes(t *testing.T) {
	tests := []struct {
		name    string
		scan    uint8
		wantLat []float64
		wantLon []float64
	}{
		{"north to south", 0x00, []float64{20, 20, 19, 19}, []float64{100, 101, 100, 101}},
		{"south to north", 0x40, []float64{20, 20, 21, 21}, []float64{100, 101, 100, 101}},
		{"east to west", 0x80, []float64{20, 20, 19, 19}, []float64{100, 99, 100, 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMessage{ni: 2, nj: 2, la1: 20, lo1: 100, scan: tt.scan, bits: 8, packed: []byte{1, 2, 3, 4}, count: 4}
			f := decodeBytes(t, m.build())
			for i, s := range f.Samples {
				if math.Abs(s.Lat-tt.wantLat[i]) > 1e-9 || math.Abs(s.Lon-tt.wantLon[i]) > 1e-9 {
					t.Errorf("Samples[%d] at (%v, %v), want (%v, %v)", i, s.Lat, s.Lon, tt.wantLat[i], tt.wantLon[i])
				}
			}
		})
	}
}

func TestDecodePNGPacking(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 2))
	for i, v := range []uint16{0, 100, 1000, 65535} {
		img.Pix[2*i] = byte(v >> 8)
		img.Pix[2*i+1] = byte(v)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	m := testMessage{
		ni: 2, nj: 2, la1: 0, lo1: 0,
		ref: 0, decScale: 1, bits: 16, template: 41,
		packed: buf.Bytes(),
		count:  4,
	}
	f := decodeBytes(t, m.build())

	for i, want := range []float64{0, 10, 100, 6553.5} {
		if math.Abs(f.Samples[i].Value-want) > 1e-9 {
			t.Errorf("Samples[%d].Value = %v, want %v", i, f.Samples[i].Value, want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	good := testMessage{ni: 2, nj: 1, bits: 8, packed: []byte{1, 2}, count: 2}

	tests := []struct {
		name string
		msg  testMessage
		code errors.Code
	}{
		{"short data", testMessage{ni: 2, nj: 1, bits: 8, packed: []byte{1}, count: 2}, errors.ErrCodeDecode},
		{"count mismatch", testMessage{ni: 3, nj: 1, bits: 8, packed: []byte{1, 2}, count: 2}, errors.ErrCodeDecode},
		{"unsupported template", func() testMessage { m := good; m.template = 3; return m }(), errors.ErrCodeUnsupported},
		{"unsupported scan", func() testMessage { m := good; m.scan = 0x20; return m }(), errors.ErrCodeUnsupported},
		{"bad png", func() testMessage { m := good; m.template = 41; return m }(), errors.ErrCodeDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := At(tt.msg.build(), 0)
			if err != nil {
				t.Fatalf("At() error: %v", err)
			}
			_, err = Decode(msg)
			if !errors.Is(err, tt.code) {
				t.Errorf("Decode() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestFindAndAt(t *testing.T) {
	first := testMessage{ni: 1, nj: 1, bits: 8, packed: []byte{1}, count: 1}.build()
	second := testMessage{ni: 2, nj: 1, bits: 8, packed: []byte{1, 2}, count: 2}.build()

	var payload []byte
	payload = append(payload, "junk GRI"...)
	payload = append(payload, first...)
	payload = append(payload, "GRIBxx"...) // truncated indicator
	secondAt := len(payload)
	payload = append(payload, second...)

	msgs := Find(payload)
	if len(msgs) != 2 {
		t.Fatalf("Find() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Offset != 8 || msgs[1].Offset != secondAt {
		t.Errorf("offsets = %d, %d, want 8, %d", msgs[0].Offset, msgs[1].Offset, secondAt)
	}
	if !bytes.Equal(msgs[1].Data, second) {
		t.Error("second message data differs")
	}

	m, err := At(payload, 9)
	if err != nil {
		t.Fatalf("At(9) error: %v", err)
	}
	if m.Offset != secondAt {
		t.Errorf("At(9).Offset = %d, want %d", m.Offset, secondAt)
	}

	if _, err := At(payload, secondAt+1); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("At(past last) error = %v, want %s", err, errors.ErrCodeNotFound)
	}
	if _, err := At(payload, -1); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("At(-1) error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}
