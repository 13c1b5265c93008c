package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned when a grid size is outside the supported range.
var ErrInvalidDimensions = errors.New("invalid grid dimensions")

// lineRewards maps the number of rows cleared by one lock to its base reward.
var lineRewards = [5]int{0, 100, 300, 500, 800}

// LineReward returns the score for clearing lines rows at the given level.
func LineReward(lines, level int) int {
	if lines < 0 || lines >= len(lineRewards) {
		return 0
	}
	return lineRewards[lines] * (level + 1)
}

// GameState owns the grid, the controllable piece, the hold slot and the
// queue. All changes go through the seven mutators; rejected moves are
// silent no-ops and every mutator does nothing once the game is over.
type GameState struct {
	grid     *Grid
	current  *Piece
	held     *Piece
	queue    *PieceQueue
	holdUsed bool
	score    int
	status   Status

	linesCleared int
	piecesPlaced int

	// onDraw observes every kind dealt by the queue after construction.
	onDraw func(Kind)
}

// NewGameState creates a default 22x10 game with a random seed.
func NewGameState() *GameState {
	gs, err := NewGameStateWithOptions(DefaultRows, DefaultColumns, RandomSeed())
	if err != nil {
		panic(err)
	}
	return gs
}

// NewGameStateWithOptions creates a game with an explicit size and queue seed.
func NewGameStateWithOptions(rows, columns int, seed uint64) (*GameState, error) {
	if err := validateDimensions(rows, columns); err != nil {
		return nil, err
	}
	gs := &GameState{
		grid:   NewGrid(rows, columns),
		queue:  NewPieceQueue(columns, seed),
		status: StatusActive,
	}
	gs.spawn(gs.queue.GetAndUpdate())
	return gs, nil
}

func validateDimensions(rows, columns int) error {
	if columns < MinColumns || columns > MaxColumns {
		return fmt.Errorf("%w: columns must be between %d and %d, got %d", ErrInvalidDimensions, MinColumns, MaxColumns, columns)
	}
	if rows < MinRows || rows > MaxRows {
		return fmt.Errorf("%w: rows must be between %d and %d, got %d", ErrInvalidDimensions, MinRows, MaxRows, rows)
	}
	return nil
}

// Rows returns the grid height including hidden rows.
func (gs *GameState) Rows() int { return gs.grid.Rows() }

// Columns returns the grid width.
func (gs *GameState) Columns() int { return gs.grid.Columns() }

// Cell returns the settled cell value at (r, c).
func (gs *GameState) Cell(r, c int) int { return gs.grid.At(r, c) }

// Grid returns a copy of the settled cells.
func (gs *GameState) Grid() [][]int { return gs.grid.Cells() }

// CurrentPiece returns a copy of the controllable piece, or nil after game over.
func (gs *GameState) CurrentPiece() *Piece { return gs.current.Clone() }

// CurrentKind returns the kind of the controllable piece.
func (gs *GameState) CurrentKind() Kind {
	if gs.current == nil {
		return KindNone
	}
	return gs.current.Kind
}

// CurrentTiles returns the absolute cells of the controllable piece.
func (gs *GameState) CurrentTiles() []Position {
	if gs.current == nil {
		return nil
	}
	return gs.current.Tiles()
}

// GhostTiles returns where the controllable piece would lock if dropped.
func (gs *GameState) GhostTiles() []Position {
	if gs.current == nil {
		return nil
	}
	d := gs.BlockDropDistance()
	tiles := gs.current.Tiles()
	for i := range tiles {
		tiles[i].Row += d
	}
	return tiles
}

// NextPiece returns the kind that will spawn next.
func (gs *GameState) NextPiece() Kind { return gs.queue.NextPiece().Kind }

// HeldPiece returns the held kind or KindNone.
func (gs *GameState) HeldPiece() Kind {
	if gs.held == nil {
		return KindNone
	}
	return gs.held.Kind
}

// CanHold reports whether HoldBlock would do anything right now.
func (gs *GameState) CanHold() bool { return !gs.holdUsed && gs.status == StatusActive }

// Score returns the accumulated score.
func (gs *GameState) Score() int { return gs.score }

// CurrentLevel is derived from the score and therefore never decreases.
func (gs *GameState) CurrentLevel() int { return gs.score / LevelThreshold }

// LinesCleared returns the total number of rows cleared.
func (gs *GameState) LinesCleared() int { return gs.linesCleared }

// PiecesPlaced returns how many pieces have locked.
func (gs *GameState) PiecesPlaced() int { return gs.piecesPlaced }

// Status returns Active or GameOver.
func (gs *GameState) Status() Status { return gs.status }

// IsGameOver reports whether the game has ended.
func (gs *GameState) IsGameOver() bool { return gs.status == StatusGameOver }

// fits reports whether every tile of p is inside the grid and empty.
func (gs *GameState) fits(p *Piece) bool {
	for pos := range p.TilePositions() {
		if !gs.grid.IsEmpty(pos) {
			return false
		}
	}
	return true
}

// try applies mutate to a copy of the current piece and installs it if legal.
func (gs *GameState) try(mutate func(p *Piece)) bool {
	if gs.status != StatusActive || gs.current == nil {
		return false
	}
	candidate := gs.current.Clone()
	mutate(candidate)
	if !gs.fits(candidate) {
		return false
	}
	gs.current = candidate
	return true
}

func (gs *GameState) draw() *Piece {
	p := gs.queue.GetAndUpdate()
	if gs.onDraw != nil {
		gs.onDraw(p.Kind)
	}
	return p
}

// spawn installs p at its spawn offset. A blocked spawn ends the game and
// leaves no controllable piece.
func (gs *GameState) spawn(p *Piece) {
	p.Reset()
	gs.holdUsed = false
	if !gs.fits(p) {
		gs.current = nil
		gs.status = StatusGameOver
		return
	}
	gs.current = p
}

// lock writes the current piece into the grid, clears rows, scores and
// spawns the next piece.
func (gs *GameState) lock() {
	for pos := range gs.current.TilePositions() {
		gs.grid.Set(pos, gs.current.Kind)
	}
	lines := gs.grid.ClearFullRows()
	gs.score += LineReward(lines, gs.CurrentLevel())
	gs.linesCleared += lines
	gs.piecesPlaced++
	gs.spawn(gs.draw())
}

// MoveBlockLeft shifts the piece one column left if the target is free.
func (gs *GameState) MoveBlockLeft() {
	gs.try(func(p *Piece) { p.Move(0, -1) })
}

// MoveBlockRight shifts the piece one column right if the target is free.
func (gs *GameState) MoveBlockRight() {
	gs.try(func(p *Piece) { p.Move(0, 1) })
}

// RotateBlockCW rotates clockwise in place. There are no wall kicks.
func (gs *GameState) RotateBlockCW() {
	gs.try((*Piece).RotateCW)
}

// RotateBlockCCW rotates counter-clockwise in place.
func (gs *GameState) RotateBlockCCW() {
	gs.try((*Piece).RotateCCW)
}

// MoveBlockDown moves the piece one row down, locking it when it cannot move.
func (gs *GameState) MoveBlockDown() {
	if gs.status != StatusActive || gs.current == nil {
		return
	}
	if !gs.try(func(p *Piece) { p.Move(1, 0) }) {
		gs.lock()
	}
}

// DropBlock moves the piece as far down as it goes and locks it.
func (gs *GameState) DropBlock() {
	if gs.status != StatusActive || gs.current == nil {
		return
	}
	gs.current.Move(gs.BlockDropDistance(), 0)
	gs.lock()
}

// HoldBlock stashes the current piece. With an empty slot the next piece
// spawns; otherwise the held piece is swapped in at its spawn offset. Only
// one hold is allowed per spawned piece.
func (gs *GameState) HoldBlock() {
	if gs.status != StatusActive || gs.current == nil || gs.holdUsed {
		return
	}
	current := gs.current
	current.Reset()
	if gs.held == nil {
		gs.held = current
		gs.spawn(gs.draw())
	} else {
		swapped := gs.held
		gs.held = current
		gs.spawn(swapped)
	}
	gs.holdUsed = true
}

// BlockDropDistance returns how many rows the piece can fall. It does not
// change the state.
func (gs *GameState) BlockDropDistance() int {
	if gs.current == nil {
		return 0
	}
	probe := gs.current.Clone()
	d := 0
	for {
		probe.Move(1, 0)
		if !gs.fits(probe) {
			return d
		}
		d++
	}
}

// Clone returns a deep copy that evolves independently, including the queue.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.grid = gs.grid.Clone()
	c.current = gs.current.Clone()
	c.held = gs.held.Clone()
	c.queue = gs.queue.Clone()
	c.onDraw = nil
	return &c
}
