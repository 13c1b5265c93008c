package engine

import "testing"

func fillRow(g *Grid, r int, kind Kind, skip ...int) {
	skipped := make(map[int]bool, len(skip))
	for _, c := range skip {
		skipped[c] = true
	}
	for c := 0; c < g.Columns(); c++ {
		if !skipped[c] {
			g.Set(Position{Row: r, Col: c}, kind)
		}
	}
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)

	tests := []struct {
		name   string
		pos    Position
		inside bool
	}{
		{"top left", Position{Row: 0, Col: 0}, true},
		{"bottom right", Position{Row: 21, Col: 9}, true},
		{"above", Position{Row: -1, Col: 4}, false},
		{"below", Position{Row: 22, Col: 4}, false},
		{"left", Position{Row: 5, Col: -1}, false},
		{"right", Position{Row: 5, Col: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IsInside(tt.pos); got != tt.inside {
				t.Errorf("IsInside(%v) = %v, want %v", tt.pos, got, tt.inside)
			}
			if got := g.IsEmpty(tt.pos); got != tt.inside {
				t.Errorf("IsEmpty(%v) on empty grid = %v, want %v", tt.pos, got, tt.inside)
			}
		})
	}
}

func TestGridRowPredicates(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	if !g.IsRowEmpty(21) || g.IsRowFull(21) {
		t.Fatal("new grid should have empty rows")
	}

	fillRow(g, 21, KindT, 4)
	if g.IsRowEmpty(21) || g.IsRowFull(21) {
		t.Error("row with a gap should be neither empty nor full")
	}

	g.Set(Position{Row: 21, Col: 4}, KindI)
	if !g.IsRowFull(21) {
		t.Error("row should be full after filling the gap")
	}

	g.ClearRow(21)
	if !g.IsRowEmpty(21) {
		t.Error("ClearRow should empty the row")
	}
}

func TestShiftRowDown(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	g.Set(Position{Row: 10, Col: 3}, KindS)

	g.ShiftRowDown(10, 3)

	if g.At(13, 3) != int(KindS) {
		t.Errorf("expected cell copied to row 13, got %d", g.At(13, 3))
	}
	if !g.IsRowEmpty(10) {
		t.Error("source row should be cleared")
	}
}

func TestClearFullRowsTwoAdjacent(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	fillRow(g, 21, KindI)
	fillRow(g, 20, KindJ)
	g.Set(Position{Row: 19, Col: 0}, KindT)
	g.Set(Position{Row: 18, Col: 1}, KindZ)

	cleared := g.ClearFullRows()

	if cleared != 2 {
		t.Fatalf("ClearFullRows() = %d, want 2", cleared)
	}
	if g.At(21, 0) != int(KindT) {
		t.Errorf("row 19 content should land on row 21, got %d", g.At(21, 0))
	}
	if g.At(20, 1) != int(KindZ) {
		t.Errorf("row 18 content should land on row 20, got %d", g.At(20, 1))
	}
	for r := 0; r < 20; r++ {
		if !g.IsRowEmpty(r) {
			t.Errorf("row %d should be empty after the shift", r)
		}
	}
}

func TestClearFullRowsSeparated(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	fillRow(g, 21, KindI)
	g.Set(Position{Row: 20, Col: 5}, KindL)
	fillRow(g, 19, KindO)
	g.Set(Position{Row: 18, Col: 7}, KindS)

	if cleared := g.ClearFullRows(); cleared != 2 {
		t.Fatalf("ClearFullRows() = %d, want 2", cleared)
	}
	if g.At(21, 5) != int(KindL) {
		t.Errorf("row 20 content should drop by one, got %d", g.At(21, 5))
	}
	if g.At(20, 7) != int(KindS) {
		t.Errorf("row 18 content should drop by two, got %d", g.At(20, 7))
	}
	if !g.IsRowEmpty(19) {
		t.Error("row 19 should be empty")
	}
}

func TestClearFullRowsNone(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	fillRow(g, 21, KindT, 0)
	before := g.Cells()

	if cleared := g.ClearFullRows(); cleared != 0 {
		t.Fatalf("ClearFullRows() = %d, want 0", cleared)
	}
	for r := range before {
		for c := range before[r] {
			if before[r][c] != g.At(r, c) {
				t.Fatalf("grid changed at (%d,%d)", r, c)
			}
		}
	}
}

func TestGridCellsIsCopy(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultColumns)
	cells := g.Cells()
	cells[21][0] = 7
	if g.At(21, 0) != 0 {
		t.Error("mutating Cells() result should not affect the grid")
	}
}
