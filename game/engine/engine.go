package engine

import (
	"fmt"
	"time"

	"github.com/kamstrup/intmap"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	Reset() *GameState
	IsGameOver() bool
	GetScore() int
	GetLevel() int
	TickDelay() time.Duration

	// Actions
	Apply(action Action) ActionOutcome
	BulkApply(actions []Action) []ActionOutcome

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetCurrentMoves() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry

	// Statistics
	KindStats() map[Kind]int

	// Persistence
	Snapshot() *Snapshot
	Persist() *Snapshot
	Restore(snapshot *Snapshot) error
}

// GameEngine implements the Engine interface
type GameEngine struct {
	state  *GameState
	config *GameConfig

	// Cumulative history survives Reset; currentMoves covers the current game.
	moveHistory  []MoveHistoryEntry
	currentMoves []MoveHistoryEntry

	kindStats *intmap.Map[Kind, int]
	lastDrawn Kind
}

// NewEngine creates a new game engine with the provided configuration
func NewEngine(config *GameConfig) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config:       config,
		moveHistory:  []MoveHistoryEntry{},
		currentMoves: []MoveHistoryEntry{},
		kindStats:    intmap.New[Kind, int](len(AllKinds)),
	}
	if err := e.newGame(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the built-in classic preset
func NewEngineWithDefaults() *GameEngine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return e
}

func (e *GameEngine) newGame() error {
	state, err := NewGameStateFromConfig(e.config)
	if err != nil {
		return err
	}
	e.install(state)
	e.kindStats.Clear()
	e.countDraw(state.CurrentKind())
	return nil
}

// install takes ownership of state and hooks queue draws into the statistics.
func (e *GameEngine) install(state *GameState) {
	state.onDraw = func(k Kind) {
		e.lastDrawn = k
		e.countDraw(k)
	}
	e.state = state
}

func (e *GameEngine) countDraw(k Kind) {
	if !k.Valid() {
		return
	}
	n, _ := e.kindStats.Get(k)
	e.kindStats.Put(k, n+1)
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// Reset starts a new game from the preset. Cumulative history is preserved;
// only the current segment is cleared.
func (e *GameEngine) Reset() *GameState {
	if err := e.newGame(); err != nil {
		// The preset was validated when it was installed.
		panic(fmt.Sprintf("reset with validated config failed: %v", err))
	}
	e.currentMoves = []MoveHistoryEntry{}
	return e.state
}

// IsGameOver returns whether the game is over
func (e *GameEngine) IsGameOver() bool {
	return e.state.IsGameOver()
}

// GetScore returns the current score
func (e *GameEngine) GetScore() int {
	return e.state.Score()
}

// GetLevel returns the current level
func (e *GameEngine) GetLevel() int {
	return e.state.CurrentLevel()
}

// TickDelay returns the gravity interval for the current level
func (e *GameEngine) TickDelay() time.Duration {
	return e.config.Tick.TickDelay(e.state.CurrentLevel())
}

// observation captures everything an action can change.
type observation struct {
	piece    Piece
	hasPiece bool
	held     Kind
	holdUsed bool
	score    int
	lines    int
	placed   int
	over     bool
}

func observe(gs *GameState) observation {
	o := observation{
		held:     gs.HeldPiece(),
		holdUsed: gs.holdUsed,
		score:    gs.score,
		lines:    gs.linesCleared,
		placed:   gs.piecesPlaced,
		over:     gs.IsGameOver(),
	}
	if gs.current != nil {
		o.piece = *gs.current
		o.hasPiece = true
	}
	return o
}

// Apply runs one action against the game and records it in the history.
func (e *GameEngine) Apply(action Action) ActionOutcome {
	before := observe(e.state)
	levelBefore := e.state.CurrentLevel()
	e.lastDrawn = KindNone

	switch action {
	case ActionLeft:
		e.state.MoveBlockLeft()
	case ActionRight:
		e.state.MoveBlockRight()
	case ActionDown, ActionTick:
		e.state.MoveBlockDown()
	case ActionRotateCW:
		e.state.RotateBlockCW()
	case ActionRotateCCW:
		e.state.RotateBlockCCW()
	case ActionHold:
		e.state.HoldBlock()
	case ActionDrop:
		e.state.DropBlock()
	}

	after := observe(e.state)
	outcome := ActionOutcome{
		Action:       action,
		Changed:      before != after,
		Locked:       after.placed > before.placed,
		LinesCleared: after.lines - before.lines,
		ScoreDelta:   after.score - before.score,
		LevelUp:      e.state.CurrentLevel() > levelBefore,
		Held:         action == ActionHold && before != after,
		GameOver:     after.over && !before.over,
		Spawned:      e.lastDrawn,
	}

	e.addMoveToHistory(outcome, before.piece.Kind)
	return outcome
}

// BulkApply runs up to MaxBulkActions actions, stopping after the game ends.
func (e *GameEngine) BulkApply(actions []Action) []ActionOutcome {
	if len(actions) > MaxBulkActions {
		actions = actions[:MaxBulkActions]
	}
	outcomes := make([]ActionOutcome, 0, len(actions))
	for _, action := range actions {
		// Stop if game is over
		if e.IsGameOver() {
			break
		}
		outcomes = append(outcomes, e.Apply(action))
	}
	return outcomes
}

func (e *GameEngine) addMoveToHistory(outcome ActionOutcome, kind Kind) {
	entry := MoveHistoryEntry{
		Action:       outcome.Action,
		Kind:         kind,
		Changed:      outcome.Changed,
		Locked:       outcome.Locked,
		LinesCleared: outcome.LinesCleared,
		Score:        e.state.Score(),
		Timestamp:    time.Now().Unix(),
		MoveNumber:   len(e.moveHistory) + 1,
	}
	e.moveHistory = append(e.moveHistory, entry)
	e.currentMoves = append(e.currentMoves, entry)
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// SetConfig sets a new game configuration and resets the game
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}
	e.config = config
	if err := e.newGame(); err != nil {
		return err
	}
	e.currentMoves = []MoveHistoryEntry{}
	return nil
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.moveHistory
}

// GetCurrentMoves returns the moves of the current game only
func (e *GameEngine) GetCurrentMoves() []MoveHistoryEntry {
	return e.currentMoves
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.moveHistory) == 0 {
		return nil
	}
	return &e.moveHistory[len(e.moveHistory)-1]
}

// KindStats returns how many pieces of each kind the queue has dealt in the
// current game.
func (e *GameEngine) KindStats() map[Kind]int {
	stats := make(map[Kind]int, e.kindStats.Len())
	e.kindStats.ForEach(func(k Kind, n int) bool {
		stats[k] = n
		return true
	})
	return stats
}
