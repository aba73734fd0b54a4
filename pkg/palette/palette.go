// Package palette implements color tables that map scalar values to colors.
//
// A [Table] is a sorted list of breakpoints. Looking up a value finds the
// pair of breakpoints around it and blends their colors linearly. A
// breakpoint may carry a second color, in which case the range up to the
// next breakpoint blends toward that color instead, producing a hard step
// at the next breakpoint (the usual look of a reflectivity scale).
//
// Tables are built once, usually with [Parse] or [Load], and are read-only
// afterwards. A single Table can be shared by any number of concurrent
// renders without locking.
package palette

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"
)

// BelowRange is returned by [Table.Index] for values that precede the first
// breakpoint (or for any value when the table is empty).
const BelowRange = -1

// Transparent is the color returned for values below the first breakpoint.
var Transparent = color.NRGBA{}

// Entry is one breakpoint of a color table.
type Entry struct {
	Value   float64
	Primary color.NRGBA

	// HasSecondary marks a discontinuity: values between this entry and the
	// next blend from Primary toward Secondary rather than toward the next
	// entry's Primary.
	HasSecondary bool
	Secondary    color.NRGBA
}

// end returns the color this entry blends toward when it is the lower
// bound, or the color it yields when it is the last entry.
func (e Entry) end() color.NRGBA {
	if e.HasSecondary {
		return e.Secondary
	}
	return e.Primary
}

// Table is a sorted color table. Entries must be ascending by Value; the
// lookup functions rely on it and do not check.
type Table struct {
	Entries []Entry

	// Scale and Offset transform a raw value before lookup:
	// v' = value*Scale + Offset.
	Scale  float64
	Offset float64

	// Metadata carried by the text format. None of it affects lookup.
	Product     string
	Units       string
	Decimals    int
	Step        float64
	RangeFolded color.NRGBA
}

// New returns a table over entries with identity scaling. The entries are
// sorted by value.
func New(entries []Entry) *Table {
	t := &Table{
		Entries: append([]Entry(nil), entries...),
		Scale:   1,
	}
	sortEntries(t.Entries)
	return t
}

// Len returns the number of breakpoints.
func (t *Table) Len() int { return len(t.Entries) }

func (t *Table) transform(value float64) float64 {
	return value*t.Scale + t.Offset
}

// upper returns the index of the first entry whose value is strictly greater
// than v. The caller guarantees Entries[0].Value <= v < Entries[n-1].Value,
// so the result is in [1, n-1].
func (t *Table) upper(v float64) int {
	return sort.Search(len(t.Entries), func(i int) bool {
		return t.Entries[i].Value > v
	})
}

// Get returns the color for value.
//
// Values below the first breakpoint are fully transparent. Values at or
// above the last breakpoint take that entry's secondary color if it has
// one, else its primary color. Anything in between is blended from the
// lower breakpoint.
func (t *Table) Get(value float64) color.NRGBA {
	n := len(t.Entries)
	v := t.transform(value)
	if n == 0 || !(v >= t.Entries[0].Value) {
		return Transparent
	}
	last := t.Entries[n-1]
	if v >= last.Value {
		return last.end()
	}

	i := t.upper(v)
	lower, upper := t.Entries[i-1], t.Entries[i]
	pos := (v - lower.Value) / (upper.Value - lower.Value)

	to := upper.Primary
	if lower.HasSecondary {
		to = lower.Secondary
	}
	return blend(lower.Primary, to, pos)
}

// Index returns the bucket i such that Entries[i].Value <= v' <
// Entries[i+1].Value. It returns [BelowRange] when v' precedes the first
// entry, and the index of the last entry when v' is at or above it.
func (t *Table) Index(value float64) int {
	n := len(t.Entries)
	v := t.transform(value)
	if n == 0 || !(v >= t.Entries[0].Value) {
		return BelowRange
	}
	if v >= t.Entries[n-1].Value {
		return n - 1
	}
	return t.upper(v) - 1
}

func blend(from, to color.NRGBA, pos float64) color.NRGBA {
	return color.NRGBA{
		R: lerp(from.R, to.R, pos),
		G: lerp(from.G, to.G, pos),
		B: lerp(from.B, to.B, pos),
		A: lerp(from.A, to.A, pos),
	}
}

func lerp(a, b uint8, pos float64) uint8 {
	v := math.Round(float64(a) + pos*(float64(b)-float64(a)))
	return uint8(min(max(v, 0), 255))
}

// String renders the table one entry per line, as "value r g b a [r g b a]".
func (t *Table) String() string {
	var b strings.Builder
	for i, e := range t.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%5g %3d %3d %3d %3d", e.Value, e.Primary.R, e.Primary.G, e.Primary.B, e.Primary.A)
		if e.HasSecondary {
			fmt.Fprintf(&b, " %3d %3d %3d %3d", e.Secondary.R, e.Secondary.G, e.Secondary.B, e.Secondary.A)
		}
	}
	return b.String()
}

// Default returns the built-in reflectivity table, in dBZ.
func Default() *Table {
	rows := [][4]float64{
		{75, 235, 235, 235},
		{70, 153, 85, 201},
		{65, 255, 0, 255},
		{60, 192, 0, 0},
		{55, 214, 0, 0},
		{50, 255, 0, 0},
		{45, 255, 144, 0},
		{40, 231, 192, 0},
		{35, 255, 255, 0},
		{30, 0, 144, 0},
		{25, 0, 200, 0},
		{20, 0, 255, 0},
		{15, 0, 0, 246},
		{10, 1, 160, 246},
		{5, 0, 236, 236},
		{0, 187, 255, 255},
		{-5, 174, 238, 238},
		{-10, 150, 205, 205},
		{-15, 102, 139, 139},
		{-20, 50, 79, 79},
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Value:   r[0],
			Primary: color.NRGBA{R: uint8(r[1]), G: uint8(r[2]), B: uint8(r[3]), A: 255},
		}
	}
	t := New(entries)
	t.Product = "BR"
	t.Units = "dBZ"
	return t
}
