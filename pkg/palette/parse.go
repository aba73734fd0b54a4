package palette

import (
	"bufio"
	"cmp"
	"image/color"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

// Parse reads a color table in the line-oriented text format:
//
//	Product: BR
//	Units:   dBZ
//	Scale:   1
//	Offset:  0
//	Color:   10  1 160 246               ; blend toward the next entry
//	Color:   20  0 255   0   0 140 0     ; blend toward 0 140 0, then step
//	Color4:  30  0 144   0 255
//	SolidColor: 65 255 0 255             ; flat band up to the next entry
//	RF: 119 0 119
//
// A ';' starts a comment. Keywords are case-insensitive and unknown
// keywords are ignored. Any malformed number, a channel outside 0-255 or a
// wrong field count fails the whole table.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{Scale: 1}
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text, _, _ := strings.Cut(scanner.Text(), ";")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidPalette, "line %d: expected \"Keyword: value\", got %q", line, text)
		}
		if err := t.apply(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPalette, err, "line %d", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPalette, err, "read color table")
	}

	sortEntries(t.Entries)
	return t, nil
}

// ParseString parses a color table held in memory.
func ParseString(s string) (*Table, error) {
	return Parse(strings.NewReader(s))
}

// Load parses the color table file at path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open color table %s", path)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPalette, err, "color table %s", path)
	}
	return t, nil
}

func (t *Table) apply(key, value string) error {
	fields := strings.Fields(value)

	switch key {
	case "color", "color4", "solidcolor", "solidcolor4":
		e, err := parseEntry(key, fields)
		if err != nil {
			return err
		}
		t.Entries = append(t.Entries, e)
	case "scale":
		return parseFloat(value, &t.Scale)
	case "offset":
		return parseFloat(value, &t.Offset)
	case "step":
		return parseFloat(value, &t.Step)
	case "decimals":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidPalette, "invalid decimals %q", value)
		}
		t.Decimals = n
	case "rf":
		if len(fields) != 3 && len(fields) != 4 {
			return errors.New(errors.ErrCodeInvalidPalette, "RF takes 3 or 4 channels, got %d", len(fields))
		}
		c, err := parseColor(fields, len(fields) == 4)
		if err != nil {
			return err
		}
		t.RangeFolded = c
	case "product":
		t.Product = value
	case "units":
		t.Units = value
	}
	return nil
}

// parseEntry parses the fields following a Color-family keyword.
func parseEntry(key string, fields []string) (Entry, error) {
	alpha := strings.HasSuffix(key, "4")
	solid := strings.HasPrefix(key, "solid")
	width := 3
	if alpha {
		width = 4
	}

	n := len(fields) - 1
	switch {
	case n == width:
	case n == 2*width && !solid:
	default:
		return Entry{}, errors.New(errors.ErrCodeInvalidPalette,
			"%s expects a value and %d channels (%d for a discontinuity), got %d fields",
			key, width, 2*width, len(fields))
	}

	var e Entry
	if err := parseFloat(fields[0], &e.Value); err != nil {
		return Entry{}, err
	}

	var err error
	if e.Primary, err = parseColor(fields[1:1+width], alpha); err != nil {
		return Entry{}, err
	}
	switch {
	case solid:
		e.HasSecondary = true
		e.Secondary = e.Primary
	case n == 2*width:
		e.HasSecondary = true
		if e.Secondary, err = parseColor(fields[1+width:], alpha); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// parseColor reads 3 (alpha=false) or 4 channel fields. Missing alpha
// defaults to opaque.
func parseColor(fields []string, alpha bool) (color.NRGBA, error) {
	want := 3
	if alpha {
		want = 4
	}
	if len(fields) < want {
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidPalette, "expected %d channels, got %d", want, len(fields))
	}

	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < want; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return color.NRGBA{}, errors.New(errors.ErrCodeInvalidPalette, "invalid color channel %q (must be 0-255)", fields[i])
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPalette, "invalid number %q", s)
	}
	*dst = v
	return nil
}

// sortEntries orders entries by value. Equal values keep their file order.
func sortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Value, b.Value)
	})
}
