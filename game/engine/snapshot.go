package engine

import "fmt"

// PieceView is the serialized form of a controllable piece.
type PieceView struct {
	Kind     Kind       `json:"kind"`
	Rotation int        `json:"rotation"`
	Offset   Position   `json:"offset"`
	Tiles    []Position `json:"tiles"`
}

// Snapshot is both the client-facing view of a game and its persistence
// format. RNGState is encoded as base64 by encoding/json.
type Snapshot struct {
	ConfigName   string       `json:"config_name"`
	Rows         int          `json:"rows"`
	Columns      int          `json:"columns"`
	HiddenRows   int          `json:"hidden_rows"`
	Grid         [][]int      `json:"grid"`
	Current      *PieceView   `json:"current,omitempty"`
	Ghost        []Position   `json:"ghost,omitempty"`
	DropDistance int          `json:"drop_distance"`
	Next         Kind         `json:"next"`
	Held         Kind         `json:"held"`
	CanHold      bool         `json:"can_hold"`
	HoldUsed     bool         `json:"hold_used"`
	Score        int          `json:"score"`
	Level        int          `json:"level"`
	LinesCleared int          `json:"lines_cleared"`
	PiecesPlaced int          `json:"pieces_placed"`
	Status       Status       `json:"status"`
	GameOver     bool         `json:"game_over"`
	Message      string       `json:"message,omitempty"`
	TickDelayMS  int64        `json:"tick_delay_ms"`
	KindStats    map[Kind]int `json:"kind_stats,omitempty"`
	Board        string       `json:"board"`
	RNGState     []byte       `json:"rng_state"`

	TotalMoves        int                `json:"total_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`
	MoveHistory       []MoveHistoryEntry `json:"move_history,omitempty"`
	CurrentMoves      []MoveHistoryEntry `json:"current_moves,omitempty"`
}

// Snapshot returns the client view of the game without the action history.
func (e *GameEngine) Snapshot() *Snapshot {
	gs := e.state
	s := &Snapshot{
		ConfigName:        e.config.Name,
		Rows:              gs.Rows(),
		Columns:           gs.Columns(),
		HiddenRows:        HiddenRows,
		Grid:              gs.Grid(),
		Ghost:             gs.GhostTiles(),
		DropDistance:      gs.BlockDropDistance(),
		Next:              gs.NextPiece(),
		Held:              gs.HeldPiece(),
		CanHold:           gs.CanHold(),
		HoldUsed:          gs.holdUsed,
		Score:             gs.Score(),
		Level:             gs.CurrentLevel(),
		LinesCleared:      gs.LinesCleared(),
		PiecesPlaced:      gs.PiecesPlaced(),
		Status:            gs.Status(),
		GameOver:          gs.IsGameOver(),
		TickDelayMS:       e.TickDelay().Milliseconds(),
		KindStats:         e.KindStats(),
		Board:             RenderBoard(gs),
		RNGState:          gs.queue.State(),
		TotalMoves:        len(e.moveHistory),
		CurrentMovesCount: len(e.currentMoves),
	}
	if gs.current != nil {
		s.Current = &PieceView{
			Kind:     gs.current.Kind,
			Rotation: gs.current.Rotation,
			Offset:   gs.current.Offset,
			Tiles:    gs.current.Tiles(),
		}
	}
	if gs.IsGameOver() {
		s.Message = e.config.Messages.GameOver
	} else if len(e.currentMoves) == 0 {
		s.Message = e.config.Messages.Welcome
	}
	return s
}

// Persist returns a snapshot that also carries the action history.
func (e *GameEngine) Persist() *Snapshot {
	s := e.Snapshot()
	s.MoveHistory = append([]MoveHistoryEntry(nil), e.moveHistory...)
	s.CurrentMoves = append([]MoveHistoryEntry(nil), e.currentMoves...)
	return s
}

// Restore replaces the game with the one described by snapshot. The engine's
// preset is kept; the snapshot must match its dimensions.
func (e *GameEngine) Restore(snapshot *Snapshot) error {
	state, err := restoreGameState(snapshot)
	if err != nil {
		return err
	}
	if state.Rows() != e.config.Rows || state.Columns() != e.config.Columns {
		return fmt.Errorf("%w: %dx%d grid does not match config %q (%dx%d)",
			ErrInvalidSnapshot, state.Rows(), state.Columns(), e.config.Name, e.config.Rows, e.config.Columns)
	}

	e.install(state)
	e.kindStats.Clear()
	for k, n := range snapshot.KindStats {
		if k.Valid() && n > 0 {
			e.kindStats.Put(k, n)
		}
	}
	e.moveHistory = append([]MoveHistoryEntry{}, snapshot.MoveHistory...)
	e.currentMoves = append([]MoveHistoryEntry{}, snapshot.CurrentMoves...)
	return nil
}

func restoreGameState(s *Snapshot) (*GameState, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}
	if err := validateDimensions(s.Rows, s.Columns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(s.Grid) != s.Rows {
		return nil, fmt.Errorf("%w: grid has %d rows, expected %d", ErrInvalidSnapshot, len(s.Grid), s.Rows)
	}
	for r, row := range s.Grid {
		if len(row) != s.Columns {
			return nil, fmt.Errorf("%w: grid row %d has %d cells, expected %d", ErrInvalidSnapshot, r, len(row), s.Columns)
		}
		for c, v := range row {
			if v < 0 || v > int(KindZ) {
				return nil, fmt.Errorf("%w: cell (%d,%d) has value %d", ErrInvalidSnapshot, r, c, v)
			}
		}
	}
	if s.Score < 0 || s.LinesCleared < 0 || s.PiecesPlaced < 0 {
		return nil, fmt.Errorf("%w: counters must not be negative", ErrInvalidSnapshot)
	}

	queue, err := restorePieceQueue(s.Columns, s.RNGState, s.Next)
	if err != nil {
		return nil, err
	}

	gs := &GameState{
		grid:         NewGrid(s.Rows, s.Columns),
		queue:        queue,
		holdUsed:     s.HoldUsed,
		score:        s.Score,
		status:       StatusActive,
		linesCleared: s.LinesCleared,
		piecesPlaced: s.PiecesPlaced,
	}
	gs.grid.load(s.Grid)

	if s.Held != KindNone {
		if !s.Held.Valid() {
			return nil, fmt.Errorf("%w: held kind %d", ErrInvalidSnapshot, s.Held)
		}
		gs.held = NewPiece(s.Held, s.Columns)
	}

	if s.GameOver || s.Status == StatusGameOver {
		gs.status = StatusGameOver
		return gs, nil
	}

	if s.Current == nil || !s.Current.Kind.Valid() {
		return nil, fmt.Errorf("%w: active game without a current piece", ErrInvalidSnapshot)
	}
	current := NewPiece(s.Current.Kind, s.Columns)
	current.Rotation = ((s.Current.Rotation % 4) + 4) % 4
	current.Offset = s.Current.Offset
	if !gs.fits(current) {
		return nil, fmt.Errorf("%w: current piece overlaps settled cells or leaves the grid", ErrInvalidSnapshot)
	}
	gs.current = current
	return gs, nil
}
