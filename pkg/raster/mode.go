package raster

import (
	"strings"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

// Mode selects how samples landing in the same cell are reduced to one
// value.
type Mode int

const (
	// Average keeps the mean of every sample in the cell.
	Average Mode = iota
	// Nearest writes each sample into its own cell and its 8 neighbours,
	// keeping per cell the sample closest to the cell centre.
	Nearest
	// NearestFast is Nearest restricted to the sample's own cell.
	NearestFast
	// Max keeps the largest sample in the cell.
	Max
	// Min keeps the smallest sample in the cell.
	Min
)

var modeNames = [...]string{
	Average:     "average",
	Nearest:     "nearest",
	NearestFast: "nearest_fast",
	Max:         "max",
	Min:         "min",
}

// Modes lists every mode in declaration order.
var Modes = []Mode{Average, Nearest, NearestFast, Max, Min}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode parses a mode name. Besides the names returned by String it
// accepts the older settings-file spellings such as "Average_Data" and
// "Nearest_Fast_Data", case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "_data")
	name = strings.ReplaceAll(name, "-", "_")
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return Average, errors.New(errors.ErrCodeInvalidMode, "unknown mode %q (want one of %s)", s, strings.Join(modeNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
