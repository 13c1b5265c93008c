package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/tetris-engine/game/engine"
)

// stateWith restores a classic board whose bottom rows are filled except for
// the given well column, with current as the controllable piece.
func stateWith(t *testing.T, filledRows int, well int, current engine.Kind) *engine.GameState {
	t.Helper()
	seed := uint64(99)
	cfg := engine.DefaultConfig()
	cfg.Seed = &seed
	e, err := engine.NewEngine(cfg)
	require.NoError(t, err)

	snap := e.Persist()
	for r := cfg.Rows - filledRows; r < cfg.Rows; r++ {
		for c := 0; c < cfg.Columns; c++ {
			if c != well {
				snap.Grid[r][c] = int(engine.KindO)
			}
		}
	}
	p := engine.NewPiece(current, cfg.Columns)
	snap.Current = &engine.PieceView{Kind: current, Rotation: p.Rotation, Offset: p.Offset}
	require.NoError(t, e.Restore(snap))
	return e.GetState()
}

func TestBestFillsWell(t *testing.T) {
	gs := stateWith(t, 4, 9, engine.KindI)

	best, err := Best(gs, DefaultWeights)
	require.NoError(t, err)
	assert.Equal(t, 4, best.LinesCleared)
	assert.Equal(t, 9, best.Column)
	assert.Equal(t, 0, best.Holes)
	assert.Equal(t, 0, best.Height)
	assert.Contains(t, []int{1, 3}, best.Rotation, "the I piece must stand upright")
	assert.Equal(t, engine.ActionDrop, best.Actions[len(best.Actions)-1])
}

func TestEnumerateDoesNotMutate(t *testing.T) {
	gs := stateWith(t, 2, 0, engine.KindT)
	board := engine.RenderBoard(gs)
	next := gs.NextPiece()

	placements := Enumerate(gs, DefaultWeights)
	require.NotEmpty(t, placements)
	assert.Equal(t, board, engine.RenderBoard(gs))
	assert.Equal(t, next, gs.NextPiece())
	assert.Equal(t, 0, gs.PiecesPlaced())
}

func TestEnumerateDistinctPlacements(t *testing.T) {
	gs := stateWith(t, 0, -1, engine.KindO)

	placements := Enumerate(gs, DefaultWeights)
	// A 2x2 block has one shape and nine horizontal positions on ten columns.
	assert.Len(t, placements, engine.DefaultColumns-1)

	for i := 1; i < len(placements); i++ {
		assert.GreaterOrEqual(t, placements[i-1].Score, placements[i].Score, "placements must be sorted best first")
	}
}

func TestPlacementActionsReplay(t *testing.T) {
	gs := stateWith(t, 3, 4, engine.KindL)

	for _, p := range Enumerate(gs, DefaultWeights) {
		replay := gs.Clone()
		for _, a := range p.Actions {
			switch a {
			case engine.ActionLeft:
				replay.MoveBlockLeft()
			case engine.ActionRight:
				replay.MoveBlockRight()
			case engine.ActionDown:
				replay.MoveBlockDown()
			case engine.ActionRotateCW:
				replay.RotateBlockCW()
			case engine.ActionRotateCCW:
				replay.RotateBlockCCW()
			case engine.ActionDrop:
				replay.DropBlock()
			}
		}
		assert.Equal(t, 1, replay.PiecesPlaced(), "placement %+v should lock exactly one piece", p)
		assert.Equal(t, p.LinesCleared, replay.LinesCleared())
		assert.Equal(t, p.Holes, engine.CountHoles(replay))
	}
}

func TestEnumerateGameOver(t *testing.T) {
	e := engine.NewEngineWithDefaults()
	snap := e.Persist()
	snap.GameOver = true
	snap.Status = engine.StatusGameOver
	snap.Current = nil
	require.NoError(t, e.Restore(snap))

	assert.Nil(t, Enumerate(e.GetState(), DefaultWeights))
	_, err := Best(e.GetState(), DefaultWeights)
	assert.ErrorIs(t, err, ErrNoPlacement)
}

func TestEvaluate(t *testing.T) {
	w := Weights{AggregateHeight: -1, Lines: 2, Holes: -3, Bumpiness: -4}
	p := Placement{Height: 5, LinesCleared: 1, Holes: 2, Bumpiness: 1}
	assert.InDelta(t, -5+2-6-4, evaluate(p, w), 1e-9)

	p.GameOver = true
	assert.Equal(t, toppedOutScore, evaluate(p, w))
}
