// Package strategy searches piece placements for bots and hint tools.
//
// A placement is a rotation and a target column for the current piece
// followed by a hard drop. Every candidate is played out on a clone of the
// game, so the search never touches the caller's state and always respects
// the engine's collision rules: a rotation that stays blocked after a short
// soft drop, or a column the piece cannot slide to, is simply not offered.
package strategy

import (
	"errors"
	"math"
	"slices"
	"sort"

	"github.com/wricardo/tetris-engine/game/engine"
)

// ErrNoPlacement is returned when the game is over or no candidate exists.
var ErrNoPlacement = errors.New("no placement available")

// Weights scores a board after a placement. Higher totals are better.
type Weights struct {
	AggregateHeight float64 `json:"aggregate_height"`
	Lines           float64 `json:"lines"`
	Holes           float64 `json:"holes"`
	Bumpiness       float64 `json:"bumpiness"`
}

// DefaultWeights is a widely used hand-tuned set for the four features.
var DefaultWeights = Weights{
	AggregateHeight: -0.510066,
	Lines:           0.760666,
	Holes:           -0.35663,
	Bumpiness:       -0.184483,
}

// toppedOutScore ranks placements that end the game below everything else.
const toppedOutScore = -math.MaxFloat64 / 2

// maxPreDrops bounds the soft drops tried before a rotation.
const maxPreDrops = 2

// rotationActions reaches each rotation offset with the fewest turns.
var rotationActions = [4][]engine.Action{
	nil,
	{engine.ActionRotateCW},
	{engine.ActionRotateCW, engine.ActionRotateCW},
	{engine.ActionRotateCCW},
}

// Placement is one candidate move sequence for the current piece.
type Placement struct {
	Kind         engine.Kind     `json:"kind"`
	Rotation     int             `json:"rotation"`
	Column       int             `json:"column"`
	Actions      []engine.Action `json:"actions"`
	LinesCleared int             `json:"lines_cleared"`
	Holes        int             `json:"holes"`
	Height       int             `json:"aggregate_height"`
	Bumpiness    int             `json:"bumpiness"`
	GameOver     bool            `json:"game_over"`
	Score        float64         `json:"score"`
}

// Enumerate returns every distinct reachable placement of the current piece,
// best first.
func Enumerate(gs *engine.GameState, w Weights) []Placement {
	if gs.IsGameOver() {
		return nil
	}

	var placements []Placement
	seen := make(map[[4]engine.Position]bool)

	spawnRotation := gs.CurrentPiece().Rotation
	for rotation, turns := range rotationActions {
		rotated, actions, ok := rotate(gs, turns, (spawnRotation+rotation)%4)
		if !ok {
			continue
		}
		piece := rotated.CurrentPiece()

		for _, target := range reachableColumns(rotated) {
			candidate := rotated.Clone()
			shift := slideTo(candidate, target)
			tiles := landingTiles(candidate)
			if seen[tiles] {
				continue
			}
			seen[tiles] = true

			before := candidate.LinesCleared()
			candidate.DropBlock()

			p := Placement{
				Kind:         piece.Kind,
				Rotation:     piece.Rotation,
				Column:       target,
				Actions:      slices.Concat(actions, shift, []engine.Action{engine.ActionDrop}),
				LinesCleared: candidate.LinesCleared() - before,
				Holes:        engine.CountHoles(candidate),
				Height:       engine.AggregateHeight(candidate),
				Bumpiness:    engine.Bumpiness(candidate),
				GameOver:     candidate.IsGameOver(),
			}
			p.Score = evaluate(p, w)
			placements = append(placements, p)
		}
	}

	sort.SliceStable(placements, func(i, j int) bool { return placements[i].Score > placements[j].Score })
	return placements
}

// Best returns the highest scoring placement of the current piece.
func Best(gs *engine.GameState, w Weights) (*Placement, error) {
	placements := Enumerate(gs, w)
	if len(placements) == 0 {
		return nil, ErrNoPlacement
	}
	return &placements[0], nil
}

func evaluate(p Placement, w Weights) float64 {
	if p.GameOver {
		return toppedOutScore
	}
	return w.AggregateHeight*float64(p.Height) +
		w.Lines*float64(p.LinesCleared) +
		w.Holes*float64(p.Holes) +
		w.Bumpiness*float64(p.Bumpiness)
}

// rotate applies turns to a clone of gs, soft dropping up to maxPreDrops rows
// first when the piece has no room to turn at the top of the grid.
func rotate(gs *engine.GameState, turns []engine.Action, want int) (*engine.GameState, []engine.Action, bool) {
	for drops := 0; drops <= maxPreDrops; drops++ {
		rotated := gs.Clone()
		actions := make([]engine.Action, 0, drops+len(turns))
		for i := 0; i < drops; i++ {
			rotated.MoveBlockDown()
			actions = append(actions, engine.ActionDown)
		}
		if rotated.PiecesPlaced() != gs.PiecesPlaced() || rotated.IsGameOver() {
			return nil, nil, false
		}
		for _, a := range turns {
			if a == engine.ActionRotateCW {
				rotated.RotateBlockCW()
			} else {
				rotated.RotateBlockCCW()
			}
			actions = append(actions, a)
		}
		if piece := rotated.CurrentPiece(); piece != nil && piece.Rotation == want {
			return rotated, actions, true
		}
	}
	return nil, nil, false
}

// leftmostColumn returns the smallest column the current piece occupies.
func leftmostColumn(gs *engine.GameState) int {
	col := math.MaxInt
	for _, pos := range gs.CurrentTiles() {
		col = min(col, pos.Col)
	}
	return col
}

// reachableColumns slides a clone to each wall and reports every leftmost
// column visited on the way.
func reachableColumns(gs *engine.GameState) []int {
	start := leftmostColumn(gs)
	columns := []int{start}

	left := gs.Clone()
	for {
		prev := leftmostColumn(left)
		left.MoveBlockLeft()
		col := leftmostColumn(left)
		if col == prev {
			break
		}
		columns = append(columns, col)
	}

	right := gs.Clone()
	for {
		prev := leftmostColumn(right)
		right.MoveBlockRight()
		col := leftmostColumn(right)
		if col == prev {
			break
		}
		columns = append(columns, col)
	}

	sort.Ints(columns)
	return columns
}

// slideTo moves the piece horizontally until its leftmost column is target
// and returns the actions it took.
func slideTo(gs *engine.GameState, target int) []engine.Action {
	var actions []engine.Action
	for {
		col := leftmostColumn(gs)
		switch {
		case col > target:
			gs.MoveBlockLeft()
			actions = append(actions, engine.ActionLeft)
		case col < target:
			gs.MoveBlockRight()
			actions = append(actions, engine.ActionRight)
		default:
			return actions
		}
		if leftmostColumn(gs) == col {
			return actions
		}
	}
}

// landingTiles identifies a placement by where the piece would lock.
func landingTiles(gs *engine.GameState) [4]engine.Position {
	var tiles [4]engine.Position
	copy(tiles[:], gs.GhostTiles())
	sort.Slice(tiles[:], func(i, j int) bool {
		if tiles[i].Row != tiles[j].Row {
			return tiles[i].Row < tiles[j].Row
		}
		return tiles[i].Col < tiles[j].Col
	})
	return tiles
}
