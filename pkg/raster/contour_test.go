package raster

import "testing"

func TestContourUniform(t *testing.T) {
	g := mustGrid(t, 5, 5, Average)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			g.Set(x, y, 5)
		}
	}

	Contour(g, grayTable())

	if n := g.Filled(); n != 0 {
		t.Errorf("Filled() = %d, want 0", n)
	}
}

func TestContourKeepsBoundaries(t *testing.T) {
	g := mustGrid(t, 6, 4, Max)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			v := 1.0 // class 0
			if x >= 3 {
				v = 15 // above the table: class 1
			}
			g.Set(x, y, v)
		}
	}

	Contour(g, grayTable())

	if n := g.Filled(); n != 3 {
		t.Errorf("Filled() = %d, want 3", n)
	}
	for y := 0; y < 3; y++ {
		if g.Count(2, y) == 0 {
			t.Errorf("boundary cell (2, %d) was cleared", y)
		}
	}
}

func TestContourNoDataIsItsOwnClass(t *testing.T) {
	g := mustGrid(t, 3, 3, Max)
	// Below-range values and empty cells must not merge.
	g.Set(0, 0, -5)
	g.Set(1, 0, -5)
	g.Set(0, 1, -5)

	Contour(g, grayTable())

	if g.Count(0, 0) == 0 {
		t.Error("cell (0, 0) bordering empty cells was cleared")
	}
}

func TestContourSinglePixel(t *testing.T) {
	g := mustGrid(t, 1, 1, Max)
	g.Set(0, 0, 5)

	Contour(g, grayTable())

	if g.Filled() != 0 {
		t.Error("single cell survived contour")
	}
}
