package engine

import "iter"

// Piece is a tetromino instance: a kind, a rotation state and an offset.
// Its methods never check legality; GameState does that against the grid.
type Piece struct {
	Kind     Kind     `json:"kind"`
	Rotation int      `json:"rotation"`
	Offset   Position `json:"offset"`

	spawn Position
}

// NewPiece creates a piece of kind at its spawn offset for a grid with the
// given number of columns.
func NewPiece(kind Kind, columns int) *Piece {
	spawn := spawnOffset(kind, columns)
	return &Piece{
		Kind:   kind,
		Offset: spawn,
		spawn:  spawn,
	}
}

// TilePositions yields the absolute cells currently occupied by the piece.
// The sequence is computed on demand and can be ranged over repeatedly.
func (p *Piece) TilePositions() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for _, cell := range Cells(p.Kind, p.Rotation) {
			if !yield(cell.Add(p.Offset)) {
				return
			}
		}
	}
}

// Tiles returns TilePositions collected into a slice.
func (p *Piece) Tiles() []Position {
	tiles := make([]Position, 0, 4)
	for pos := range p.TilePositions() {
		tiles = append(tiles, pos)
	}
	return tiles
}

// Move translates the piece.
func (p *Piece) Move(rowDelta, colDelta int) {
	p.Offset.Row += rowDelta
	p.Offset.Col += colDelta
}

// RotateCW advances the rotation state.
func (p *Piece) RotateCW() {
	p.Rotation = (p.Rotation + 1) % 4
}

// RotateCCW retreats the rotation state.
func (p *Piece) RotateCCW() {
	p.Rotation = (p.Rotation + 3) % 4
}

// Reset restores the default rotation and the spawn offset.
func (p *Piece) Reset() {
	p.Rotation = 0
	p.Offset = p.spawn
}

// SpawnOffset returns the offset Reset restores.
func (p *Piece) SpawnOffset() Position {
	return p.spawn
}

// Clone returns an independent copy.
func (p *Piece) Clone() *Piece {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
