package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

var errMockNotFound = errors.New("session not found")

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    map[string]int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
		saves:    make(map[string]int),
	}
}

func (m *MockSessionManager) Create(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("t%03d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Config:         config,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}

	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, errMockNotFound
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	return m.Create(id, configID, config)
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errMockNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	if session, exists := m.sessions[id]; exists {
		session.Touch(time.Now())
		return nil
	}
	return errMockNotFound
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errMockNotFound
	}
	m.saves[id]++
	return nil
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.GameConfig
}

func testConfig(name string, rows, columns int) *engine.GameConfig {
	seed := uint64(11)
	cfg := engine.DefaultConfig()
	cfg.Name = name
	cfg.Description = name + " test configuration"
	cfg.Rows = rows
	cfg.Columns = columns
	cfg.Seed = &seed
	return cfg
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		configs: map[string]*engine.GameConfig{
			"classic": testConfig("Classic", engine.DefaultRows, engine.DefaultColumns),
			"tiny":    testConfig("Tiny", engine.MinRows, engine.MinColumns),
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.GameConfig, error) {
	if cfg, ok := m.configs[name]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("configuration not found: %s", name)
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var infos []*service.ConfigInfo
	for id, cfg := range m.configs {
		infos = append(infos, &service.ConfigInfo{
			Filename: id + ".json",
			ConfigID: id,
			Name:     cfg.Name,
			Rows:     cfg.Rows,
			Columns:  cfg.Columns,
			Seeded:   cfg.Seed != nil,
		})
	}
	return infos, nil
}

func (m *MockConfigManager) GetDefault() *engine.GameConfig {
	return m.configs["classic"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.GameConfig) error {
	m.configs[name] = config
	return nil
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

func newTestService(t *testing.T) (service.GameService, *MockSessionManager) {
	t.Helper()
	sessions := NewMockSessionManager()
	return service.NewGameServiceWithLogger(sessions, NewMockConfigManager(), discardLogger{}), sessions
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("default config", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, info.ID)
		assert.Equal(t, "classic", info.ConfigID)
		require.NotNil(t, info.GameState)
		assert.Equal(t, engine.DefaultRows, info.GameState.Rows)
		assert.False(t, info.GameState.GameOver)
		assert.NotNil(t, info.GameState.Current)
	})

	t.Run("named config", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "tiny")
		require.NoError(t, err)
		assert.Equal(t, "tiny", info.ConfigID)
		assert.Equal(t, engine.MinColumns, info.GameState.Columns)
	})

	t.Run("unknown config lists alternatives", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classic")
	})
}

func TestGameService_GetAndDeleteSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)

	require.NoError(t, svc.DeleteSession(ctx, info.ID))
	_, err = svc.GetSession(ctx, info.ID)
	assert.ErrorIs(t, err, errMockNotFound)
}

func TestGameService_ConcurrentGetSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				got, err := svc.GetSession(ctx, info.ID)
				if err != nil {
					t.Errorf("GetSession failed: %v", err)
					return
				}
				if got.LastAccessedAt.Before(info.CreatedAt) {
					t.Errorf("Access time %v before creation %v", got.LastAccessedAt, info.CreatedAt)
				}
			}
		}()
	}
	wg.Wait()
}

func TestGameService_Act(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	t.Run("movement", func(t *testing.T) {
		result, err := svc.Act(ctx, info.ID, "down", false)
		require.NoError(t, err)
		assert.True(t, result.Success)
		require.NotNil(t, result.Step)
		assert.Equal(t, engine.ActionDown, result.Step.Action)
		assert.Equal(t, service.EventAction, result.Events[0].Type)
	})

	t.Run("aliases are accepted", func(t *testing.T) {
		result, err := svc.Act(ctx, info.ID, "CW", false)
		require.NoError(t, err)
		assert.Equal(t, engine.ActionRotateCW, result.Step.Action)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := svc.Act(ctx, info.ID, "jump", false)
		assert.ErrorIs(t, err, engine.ErrUnknownAction)
	})

	t.Run("hold emits event", func(t *testing.T) {
		result, err := svc.Act(ctx, info.ID, "hold", false)
		require.NoError(t, err)
		assert.True(t, hasEvent(result.Events, service.EventHold))
		assert.NotEqual(t, engine.KindNone, result.GameState.Held)
		assert.False(t, result.GameState.CanHold)
	})

	t.Run("drop locks and spawns", func(t *testing.T) {
		result, err := svc.Act(ctx, info.ID, "drop", false)
		require.NoError(t, err)
		assert.True(t, result.Step.Locked)
		assert.NotEqual(t, engine.KindNone, result.Step.Spawned)
		assert.True(t, hasEvent(result.Events, service.EventLock))
		assert.Equal(t, 1, result.GameState.PiecesPlaced)
	})

	t.Run("reset before action", func(t *testing.T) {
		result, err := svc.Act(ctx, info.ID, "left", true)
		require.NoError(t, err)
		assert.Equal(t, service.EventReset, result.Events[0].Type)
		assert.Equal(t, 0, result.GameState.PiecesPlaced)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := svc.Act(ctx, "zzzz", "left", false)
		assert.ErrorIs(t, err, errMockNotFound)
	})

	assert.Greater(t, sessions.saves[info.ID], 0, "actions should auto-save the session")
}

func TestGameService_BulkAct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("applies in order", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)

		result, err := svc.BulkAct(ctx, info.ID, []string{"left", "left", "rotate_cw", "drop"}, false)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 4, result.ActionsExecuted)
		assert.Equal(t, 4, result.RequestedActions)
		assert.Equal(t, 1, result.PiecesLocked)
		require.Len(t, result.Steps, 4)
		assert.Equal(t, 4, result.Steps[3].Idx)
		assert.Empty(t, result.StopReasonCode)
		assert.Equal(t, result.EndScore-result.StartScore, result.ScoreDelta)
	})

	t.Run("rejects batch with unknown action", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)

		_, err = svc.BulkAct(ctx, info.ID, []string{"left", "teleport"}, false)
		assert.ErrorIs(t, err, engine.ErrUnknownAction)

		history, err := svc.GetMoveHistory(ctx, info.ID, service.HistoryOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, history.TotalMoves, "nothing may be applied from a rejected batch")
	})

	t.Run("truncates long batches", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)

		actions := make([]string, engine.MaxBulkActions+10)
		for i := range actions {
			actions[i] = "left"
		}
		result, err := svc.BulkAct(ctx, info.ID, actions, false)
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Equal(t, engine.MaxBulkActions, result.Limit)
		assert.Equal(t, engine.MaxBulkActions, result.ActionsExecuted)
		assert.Equal(t, service.StopTruncated, result.StopReasonCode)
	})

	t.Run("stops at game over", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "tiny")
		require.NoError(t, err)

		drops := make([]string, engine.MaxBulkActions)
		for i := range drops {
			drops[i] = "drop"
		}

		var result *service.BulkActionResult
		for i := 0; i < 40; i++ {
			result, err = svc.BulkAct(ctx, info.ID, drops, false)
			require.NoError(t, err)
			if result.GameOver {
				break
			}
		}
		require.True(t, result.GameOver, "a tiny board must top out under repeated drops")
		assert.Equal(t, service.StopGameOver, result.StopReasonCode)
		assert.Nil(t, result.GameState.Current)

		again, err := svc.BulkAct(ctx, info.ID, []string{"left"}, false)
		require.NoError(t, err)
		assert.False(t, again.Success)
		assert.Equal(t, 0, again.ActionsExecuted)
		assert.Equal(t, 1, again.StoppedOnAction)
	})
}

func TestGameService_Reset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = svc.BulkAct(ctx, info.ID, []string{"drop", "drop"}, false)
	require.NoError(t, err)

	state, err := svc.Reset(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.PiecesPlaced)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, 0, state.CurrentMovesCount)
	assert.Equal(t, 2, state.TotalMoves, "history survives a reset")
}

func TestGameService_GetMoveHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	actions := make([]string, 25)
	for i := range actions {
		actions[i] = []string{"left", "right"}[i%2]
	}
	_, err = svc.BulkAct(ctx, info.ID, actions, false)
	require.NoError(t, err)

	tests := []struct {
		name      string
		opts      service.HistoryOptions
		wantLen   int
		wantFirst int
		wantPages int
		hasNext   bool
	}{
		{"defaults newest first", service.HistoryOptions{}, 20, 25, 2, true},
		{"second page desc", service.HistoryOptions{Page: 2, Limit: 10}, 10, 15, 3, true},
		{"last page asc", service.HistoryOptions{Page: 3, Limit: 10, Order: "asc"}, 5, 21, 3, false},
		{"limit is capped", service.HistoryOptions{Limit: 500, Order: "asc"}, 25, 1, 1, false},
		{"page past the end", service.HistoryOptions{Page: 9, Limit: 10}, 0, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := svc.GetMoveHistory(ctx, info.ID, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, 25, history.TotalMoves)
			assert.Len(t, history.Moves, tt.wantLen)
			assert.Equal(t, tt.wantPages, history.TotalPages)
			assert.Equal(t, tt.hasNext, history.HasNext)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, history.Moves[0].MoveNumber)
			}
			assert.LessOrEqual(t, history.PageSize, 100)
		})
	}
}

func TestGameService_Suggest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	before, err := svc.GetGameState(ctx, info.ID)
	require.NoError(t, err)

	suggestion, err := svc.Suggest(ctx, info.ID)
	require.NoError(t, err)
	require.NotNil(t, suggestion.Best)
	assert.Equal(t, before.Current.Kind, suggestion.Best.Kind)
	require.NotEmpty(t, suggestion.Best.Actions)
	assert.Equal(t, engine.ActionDrop, suggestion.Best.Actions[len(suggestion.Best.Actions)-1])
	for _, alt := range suggestion.Alternatives {
		assert.LessOrEqual(t, alt.Score, suggestion.Best.Score)
	}
	assert.NotEmpty(t, suggestion.Board)

	after, err := svc.GetGameState(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Current, after.Current, "suggest must not move the live piece")
	assert.Equal(t, before.TotalMoves, after.TotalMoves)

	// Following the suggestion locks exactly one piece.
	actions := make([]string, len(suggestion.Best.Actions))
	for i, a := range suggestion.Best.Actions {
		actions[i] = string(a)
	}
	result, err := svc.BulkAct(ctx, info.ID, actions, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PiecesLocked)
}

func TestGameService_ListSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)
	}

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.NotNil(t, s.GameState)
		assert.True(t, strings.HasPrefix(s.ID, "t"))
	}
}

func TestGameService_Configs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	configs, err := svc.ListConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 2)

	custom := testConfig("Custom", 20, 12)
	require.NoError(t, svc.SaveConfig(ctx, "custom", custom))

	loaded, err := svc.LoadConfig(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Columns)

	info, err := svc.CreateSession(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, 12, info.GameState.Columns)
}

func hasEvent(events []service.GameEvent, eventType string) bool {
	for _, e := range events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}
