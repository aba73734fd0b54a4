package raster

import (
	"image/color"
	"testing"

	"github.com/AdenKoperczak/grib2pf/pkg/palette"
)

func grayTable() *palette.Table {
	return palette.New([]palette.Entry{
		{Value: 0, Primary: color.NRGBA{0, 0, 0, 255}},
		{Value: 10, Primary: color.NRGBA{255, 255, 255, 255}},
	})
}

func TestColorize(t *testing.T) {
	g := mustGrid(t, 3, 2, Average)
	g.Set(0, 0, 10)
	g.Set(1, 0, 5)
	g.Set(2, 1, -5)

	img := Colorize(g, grayTable())

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, color.NRGBA{255, 255, 255, 255}},
		{1, 0, color.NRGBA{128, 128, 128, 255}},
		{2, 0, color.NRGBA{}}, // no data
		{2, 1, color.NRGBA{}}, // below the table
	}
	for _, tt := range tests {
		if got := img.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestColorizeAverageDividesSum(t *testing.T) {
	g := mustGrid(t, 1, 1, Average)
	acc := accumulatorFor(Average)
	acc.add(g, 0, 0, 0, 0, 4)
	acc.add(g, 0, 0, 0, 0, 6)

	if got := Colorize(g, grayTable()).NRGBAAt(0, 0); got != (color.NRGBA{128, 128, 128, 255}) {
		t.Errorf("pixel = %v, want mid gray", got)
	}
}
