package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *GameConfig {
	seed := uint64(7)
	cfg := DefaultConfig()
	cfg.Name = "Engine Test Config"
	cfg.Description = "Seeded configuration for engine tests"
	cfg.Seed = &seed
	return cfg
}

func newTestEngine(t *testing.T) *GameEngine {
	t.Helper()
	e, err := NewEngine(createTestConfig())
	require.NoError(t, err)
	return e
}

func TestNewEngineValidatesConfig(t *testing.T) {
	cfg := createTestConfig()
	cfg.Columns = 2
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewEngineWithDefaults(t *testing.T) {
	e := NewEngineWithDefaults()
	assert.Equal(t, "Classic", e.GetConfig().Name)
	assert.False(t, e.IsGameOver())
	assert.Equal(t, 500*time.Millisecond, e.TickDelay())
}

func TestApplyMovement(t *testing.T) {
	e := newTestEngine(t)

	out := e.Apply(ActionDown)
	assert.Equal(t, ActionDown, out.Action)
	assert.True(t, out.Changed)
	assert.False(t, out.Locked)
	assert.Equal(t, KindNone, out.Spawned)

	for i := 0; i < DefaultColumns; i++ {
		e.Apply(ActionLeft)
	}
	out = e.Apply(ActionLeft)
	assert.False(t, out.Changed, "move into the wall should be rejected")

	history := e.GetMoveHistory()
	require.Len(t, history, DefaultColumns+2)
	assert.Equal(t, 1, history[0].MoveNumber)
	assert.True(t, history[0].Changed)
	assert.False(t, history[len(history)-1].Changed)
	assert.Equal(t, history[len(history)-1], *e.GetLastMove())
}

func TestApplyDropReportsLockAndSpawn(t *testing.T) {
	e := newTestEngine(t)
	next := e.GetState().NextPiece()

	out := e.Apply(ActionDrop)

	assert.True(t, out.Changed)
	assert.True(t, out.Locked)
	assert.Equal(t, next, out.Spawned)
	assert.Equal(t, 1, e.GetState().PiecesPlaced())
	assert.Equal(t, e.GetState().Score(), e.GetLastMove().Score)
	assert.True(t, e.GetLastMove().Locked)
}

func TestApplyTickMatchesDown(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	for i := 0; i < 30; i++ {
		a.Apply(ActionTick)
		b.Apply(ActionDown)
	}
	assert.Equal(t, a.GetState().Grid(), b.GetState().Grid())
	assert.Equal(t, a.GetState().CurrentTiles(), b.GetState().CurrentTiles())
	assert.Equal(t, ActionTick, a.GetLastMove().Action)
}

func TestApplyHold(t *testing.T) {
	e := newTestEngine(t)
	first := e.GetState().CurrentKind()

	out := e.Apply(ActionHold)
	assert.True(t, out.Held)
	assert.True(t, out.Changed)
	assert.NotEqual(t, KindNone, out.Spawned)
	assert.Equal(t, first, e.GetState().HeldPiece())

	out = e.Apply(ActionHold)
	assert.False(t, out.Held)
	assert.False(t, out.Changed)
}

func TestApplyLineClearAndLevelUp(t *testing.T) {
	e := newTestEngine(t)
	gs := e.GetState()
	gs.score = 900
	fillRow(gs.grid, 21, KindZ, 3, 4, 5, 6)
	setCurrent(t, gs, KindI, 0, spawnOffset(KindI, gs.Columns()))

	out := e.Apply(ActionDrop)

	assert.True(t, out.Locked)
	assert.Equal(t, 1, out.LinesCleared)
	assert.Equal(t, 100, out.ScoreDelta)
	assert.True(t, out.LevelUp)
	assert.Equal(t, 1, e.GetLevel())
	assert.Equal(t, 450*time.Millisecond, e.TickDelay())
}

func TestBulkApplyStopsAtGameOver(t *testing.T) {
	e := newTestEngine(t)
	actions := make([]Action, MaxBulkActions)
	for i := range actions {
		actions[i] = ActionDrop
	}

	outcomes := e.BulkApply(actions)

	require.True(t, e.IsGameOver(), "fifty hard drops in one column should top out")
	require.NotEmpty(t, outcomes)
	assert.Less(t, len(outcomes), MaxBulkActions)
	assert.True(t, outcomes[len(outcomes)-1].GameOver)
	for _, o := range outcomes[:len(outcomes)-1] {
		assert.False(t, o.GameOver)
	}
}

func TestBulkApplyTruncates(t *testing.T) {
	e := newTestEngine(t)
	actions := make([]Action, MaxBulkActions+10)
	for i := range actions {
		if i%2 == 0 {
			actions[i] = ActionLeft
		} else {
			actions[i] = ActionRight
		}
	}
	outcomes := e.BulkApply(actions)
	assert.Len(t, outcomes, MaxBulkActions)
}

func TestResetPreservesHistory(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(ActionDrop)
	e.Apply(ActionLeft)

	state := e.Reset()

	assert.Zero(t, state.PiecesPlaced())
	assert.Len(t, e.GetMoveHistory(), 2)
	assert.Empty(t, e.GetCurrentMoves())

	e.Apply(ActionRight)
	assert.Len(t, e.GetMoveHistory(), 3)
	assert.Len(t, e.GetCurrentMoves(), 1)
	assert.Equal(t, 3, e.GetLastMove().MoveNumber)
}

func TestSeededEngineIsDeterministic(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)
	for i := 0; i < 10; i++ {
		a.Apply(ActionDrop)
		b.Apply(ActionDrop)
	}
	assert.Equal(t, a.GetState().Grid(), b.GetState().Grid())
	assert.Equal(t, a.KindStats(), b.KindStats())
}

func TestKindStatsCountsDraws(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		e.Apply(ActionDrop)
	}
	total := 0
	for kind, n := range e.KindStats() {
		assert.True(t, kind.Valid())
		total += n
	}
	// Initial spawn plus one draw per lock.
	assert.Equal(t, 6, total)

	e.Reset()
	total = 0
	for _, n := range e.KindStats() {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestSnapshotView(t *testing.T) {
	e := newTestEngine(t)
	s := e.Snapshot()

	assert.Equal(t, "Engine Test Config", s.ConfigName)
	assert.Equal(t, DefaultRows, s.Rows)
	assert.Equal(t, HiddenRows, s.HiddenRows)
	require.NotNil(t, s.Current)
	assert.Len(t, s.Current.Tiles, 4)
	assert.Len(t, s.Ghost, 4)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, int64(500), s.TickDelayMS)
	assert.Equal(t, e.GetConfig().Messages.Welcome, s.Message)
	assert.Len(t, s.RNGState, 16)
	assert.Nil(t, s.MoveHistory)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, s.Next.String(), raw["next"])
	assert.Equal(t, "none", raw["held"])
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(ActionHold)
	e.Apply(ActionDrop)
	e.Apply(ActionLeft)
	e.Apply(ActionDrop)

	data, err := json.Marshal(e.Persist())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored := newTestEngine(t)
	require.NoError(t, restored.Restore(&snap))

	assert.Equal(t, e.GetState().Grid(), restored.GetState().Grid())
	assert.Equal(t, e.GetState().CurrentTiles(), restored.GetState().CurrentTiles())
	assert.Equal(t, e.GetState().HeldPiece(), restored.GetState().HeldPiece())
	assert.Equal(t, e.GetState().CanHold(), restored.GetState().CanHold())
	assert.Equal(t, e.KindStats(), restored.KindStats())
	assert.Equal(t, e.GetMoveHistory(), restored.GetMoveHistory())

	// Both deal the same future pieces.
	for i := 0; i < 20; i++ {
		e.Apply(ActionDrop)
		restored.Apply(ActionDrop)
		require.Equal(t, e.GetState().CurrentKind(), restored.GetState().CurrentKind())
	}
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"wrong row count", func(s *Snapshot) { s.Grid = s.Grid[1:] }},
		{"bad cell value", func(s *Snapshot) { s.Grid[21][0] = 9 }},
		{"missing piece", func(s *Snapshot) { s.Current = nil }},
		{"overlapping piece", func(s *Snapshot) {
			for _, pos := range s.Current.Tiles {
				s.Grid[pos.Row][pos.Col] = int(KindT)
			}
		}},
		{"short rng state", func(s *Snapshot) { s.RNGState = s.RNGState[:4] }},
		{"dimension mismatch", func(s *Snapshot) {
			s.Columns = 12
			for r := range s.Grid {
				s.Grid[r] = append(s.Grid[r], 0, 0)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.Persist()
			tt.mutate(s)
			err := e.Restore(s)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
	assert.ErrorIs(t, e.Restore(nil), ErrInvalidSnapshot)
}

func TestRestoreGameOverSnapshot(t *testing.T) {
	e := newTestEngine(t)
	for !e.IsGameOver() {
		e.Apply(ActionDrop)
	}
	snap := e.Persist()
	assert.Nil(t, snap.Current)
	assert.Equal(t, e.GetConfig().Messages.GameOver, snap.Message)

	restored := newTestEngine(t)
	require.NoError(t, restored.Restore(snap))
	assert.True(t, restored.IsGameOver())
	assert.False(t, restored.Apply(ActionLeft).Changed)
}

func TestSetConfig(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(ActionDrop)

	wide := createTestConfig()
	wide.Columns = 14
	require.NoError(t, e.SetConfig(wide))
	assert.Equal(t, 14, e.GetState().Columns())
	assert.Empty(t, e.GetCurrentMoves())

	bad := createTestConfig()
	bad.Tick.MinMS = 0
	assert.ErrorIs(t, e.SetConfig(bad), ErrInvalidConfig)
}
