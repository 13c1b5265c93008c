package engine

// rotationTable holds the four rotation states of a kind. Each state lists the
// occupied cells relative to the piece offset.
type rotationTable [4][4]Position

var shapes = map[Kind]rotationTable{
	KindI: {
		{{1, 0}, {1, 1}, {1, 2}, {1, 3}},
		{{0, 2}, {1, 2}, {2, 2}, {3, 2}},
		{{2, 0}, {2, 1}, {2, 2}, {2, 3}},
		{{0, 1}, {1, 1}, {2, 1}, {3, 1}},
	},
	KindJ: {
		{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 1}, {0, 2}, {1, 1}, {2, 1}},
		{{1, 0}, {1, 1}, {1, 2}, {2, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {2, 0}},
	},
	KindL: {
		{{0, 2}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {2, 2}},
		{{1, 0}, {1, 1}, {1, 2}, {2, 0}},
		{{0, 0}, {0, 1}, {1, 1}, {2, 1}},
	},
	KindO: {
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	},
	KindS: {
		{{0, 1}, {0, 2}, {1, 0}, {1, 1}},
		{{0, 1}, {1, 1}, {1, 2}, {2, 2}},
		{{1, 1}, {1, 2}, {2, 0}, {2, 1}},
		{{0, 0}, {1, 0}, {1, 1}, {2, 1}},
	},
	KindT: {
		{{0, 1}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {1, 2}, {2, 1}},
		{{1, 0}, {1, 1}, {1, 2}, {2, 1}},
		{{0, 1}, {1, 0}, {1, 1}, {2, 1}},
	},
	KindZ: {
		{{0, 0}, {0, 1}, {1, 1}, {1, 2}},
		{{0, 2}, {1, 1}, {1, 2}, {2, 1}},
		{{1, 0}, {1, 1}, {2, 1}, {2, 2}},
		{{0, 1}, {1, 0}, {1, 1}, {2, 0}},
	},
}

// spawnOffset returns the top-centre offset for kind on a grid with the given
// number of columns. The I piece starts one row higher because its first
// rotation state occupies the second row of its bounding box; O is two cells
// wide and shifts right to stay centred.
func spawnOffset(kind Kind, columns int) Position {
	col := (columns - 4) / 2
	switch kind {
	case KindI:
		return Position{Row: -1, Col: col}
	case KindO:
		return Position{Row: 0, Col: col + 1}
	default:
		return Position{Row: 0, Col: col}
	}
}

// Cells returns the relative cells of kind in the given rotation state.
func Cells(kind Kind, rotation int) [4]Position {
	return shapes[kind][((rotation%4)+4)%4]
}
