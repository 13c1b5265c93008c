package engine

import "strings"

// ColumnHeights returns, per column, the number of rows from the bottom up to
// and including the topmost settled cell.
func ColumnHeights(gs *GameState) []int {
	rows, cols := gs.Rows(), gs.Columns()
	heights := make([]int, cols)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			if gs.Cell(r, c) != 0 {
				heights[c] = rows - r
				break
			}
		}
	}
	return heights
}

// AggregateHeight sums the column heights.
func AggregateHeight(gs *GameState) int {
	total := 0
	for _, h := range ColumnHeights(gs) {
		total += h
	}
	return total
}

// CountHoles counts empty cells with a settled cell somewhere above them.
func CountHoles(gs *GameState) int {
	holes := 0
	for c := 0; c < gs.Columns(); c++ {
		covered := false
		for r := 0; r < gs.Rows(); r++ {
			if gs.Cell(r, c) != 0 {
				covered = true
			} else if covered {
				holes++
			}
		}
	}
	return holes
}

// Bumpiness sums the absolute height differences between adjacent columns.
func Bumpiness(gs *GameState) int {
	heights := ColumnHeights(gs)
	total := 0
	for i := 1; i < len(heights); i++ {
		total += abs(heights[i] - heights[i-1])
	}
	return total
}

// CountFilledCells returns the number of settled cells.
func CountFilledCells(gs *GameState) int {
	count := 0
	for _, row := range gs.grid.cells {
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
	}
	return count
}

// RenderBoard draws the visible rows as text. Settled cells use the kind
// letter, the active piece '@', the ghost '+', empty cells '.'.
func RenderBoard(gs *GameState) string {
	rows, cols := gs.Rows(), gs.Columns()
	overlay := make(map[Position]byte, 8)
	for _, pos := range gs.GhostTiles() {
		overlay[pos] = '+'
	}
	for _, pos := range gs.CurrentTiles() {
		overlay[pos] = '@'
	}

	var b strings.Builder
	b.Grow((rows - HiddenRows) * (cols + 1))
	for r := HiddenRows; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if ch, ok := overlay[Position{Row: r, Col: c}]; ok {
				b.WriteByte(ch)
				continue
			}
			if v := gs.Cell(r, c); v != 0 {
				b.WriteString(Kind(v).String())
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
