package engine

// Grid is the play field occupancy matrix. Cell value 0 is empty, 1..7 is the
// kind of the settled piece that filled it. The top HiddenRows rows are a spawn
// buffer that clients normally do not draw.
type Grid struct {
	rows    int
	columns int
	cells   [][]int
}

// NewGrid creates an empty grid.
func NewGrid(rows, columns int) *Grid {
	cells := make([][]int, rows)
	for r := range cells {
		cells[r] = make([]int, columns)
	}
	return &Grid{rows: rows, columns: columns, cells: cells}
}

// Rows returns the total number of rows, hidden rows included.
func (g *Grid) Rows() int { return g.rows }

// Columns returns the number of columns.
func (g *Grid) Columns() int { return g.columns }

// At returns the cell value at (r, c), or 0 outside the grid.
func (g *Grid) At(r, c int) int {
	if !g.IsInside(Position{Row: r, Col: c}) {
		return 0
	}
	return g.cells[r][c]
}

// Set writes a kind id into a cell. Positions outside the grid are ignored.
func (g *Grid) Set(pos Position, kind Kind) {
	if g.IsInside(pos) {
		g.cells[pos.Row][pos.Col] = int(kind)
	}
}

// IsInside reports whether pos lies within the grid bounds.
func (g *Grid) IsInside(pos Position) bool {
	return pos.Row >= 0 && pos.Row < g.rows && pos.Col >= 0 && pos.Col < g.columns
}

// IsEmpty reports whether pos is inside the grid and unoccupied.
func (g *Grid) IsEmpty(pos Position) bool {
	return g.IsInside(pos) && g.cells[pos.Row][pos.Col] == 0
}

// IsRowFull reports whether every cell in row r is occupied.
func (g *Grid) IsRowFull(r int) bool {
	for c := 0; c < g.columns; c++ {
		if g.cells[r][c] == 0 {
			return false
		}
	}
	return true
}

// IsRowEmpty reports whether every cell in row r is empty.
func (g *Grid) IsRowEmpty(r int) bool {
	for c := 0; c < g.columns; c++ {
		if g.cells[r][c] != 0 {
			return false
		}
	}
	return true
}

// ClearRow empties row r.
func (g *Grid) ClearRow(r int) {
	for c := 0; c < g.columns; c++ {
		g.cells[r][c] = 0
	}
}

// ShiftRowDown copies row r into row r+numRows and clears row r.
func (g *Grid) ShiftRowDown(r, numRows int) {
	if numRows == 0 {
		return
	}
	copy(g.cells[r+numRows], g.cells[r])
	g.ClearRow(r)
}

// ClearFullRows removes every full row and compacts the rows above it,
// returning how many rows were removed. Rows are visited once, bottom to top:
// a full row is cleared and counted, any other row drops by the count so far.
func (g *Grid) ClearFullRows() int {
	cleared := 0
	for r := g.rows - 1; r >= 0; r-- {
		if g.IsRowFull(r) {
			g.ClearRow(r)
			cleared++
		} else if cleared > 0 {
			g.ShiftRowDown(r, cleared)
		}
	}
	return cleared
}

// Cells returns a copy of the full matrix, hidden rows included.
func (g *Grid) Cells() [][]int {
	out := make([][]int, g.rows)
	for r := range g.cells {
		out[r] = append([]int(nil), g.cells[r]...)
	}
	return out
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	return &Grid{rows: g.rows, columns: g.columns, cells: g.Cells()}
}

// load replaces the matrix contents. Callers validate dimensions first.
func (g *Grid) load(cells [][]int) {
	for r := range g.cells {
		copy(g.cells[r], cells[r])
	}
}
