package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/strategy"
)

// maxAlternatives bounds the runner-up placements returned by Suggest.
const maxAlternatives = 3

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	log      Logger
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return NewGameServiceWithLogger(sessions, configs, log.Default())
}

// NewGameServiceWithLogger creates a game service that reports persistence
// warnings to l.
func NewGameServiceWithLogger(sessions SessionManager, configs ConfigManager, l Logger) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		log:      l,
	}
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return strings.ToLower(configName)
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigID:       configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.AccessedAt(),
		GameState:      sess.View(),
		GameConfig:     sess.Config,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.GameConfig
	var err error
	if configID != "" {
		config, err = s.configs.LoadConfig(configID)
		if err != nil {
			availableConfigs, listErr := s.configs.ListConfigs()
			if listErr == nil && len(availableConfigs) > 0 {
				configIDs := make([]string, 0, len(availableConfigs))
				for _, cfg := range availableConfigs {
					configIDs = append(configIDs, cfg.ConfigID)
				}
				return nil, fmt.Errorf("config '%s' unavailable (available configs: %v): %w", configID, configIDs, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configID, err)
		}
		configID = strings.TrimSuffix(strings.ToLower(configID), ".json")
	} else {
		config = s.configs.GetDefault()
		configID = s.getConfigID(config.Name)
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.touch(sessionID)

	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Act applies a single action to a session
func (s *gameServiceImpl) Act(ctx context.Context, sessionID, action string, reset bool) (*ActionResult, error) {
	parsed, err := engine.ParseAction(action)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.touch(sessionID)

	events := []GameEvent{}

	sess.Lock()
	if reset {
		sess.Engine.Reset()
		events = append(events, resetEvent())
	}

	kind := sess.Engine.GetState().CurrentKind()
	outcome := sess.Engine.Apply(parsed)
	level := sess.Engine.GetLevel()
	events = append(events, outcomeEvents(outcome, kind, level, sess.Config)...)
	snapshot := sess.Engine.Snapshot()
	sess.Unlock()

	step := stepInfo(1, outcome, kind)
	result := &ActionResult{
		Success:   outcome.Changed,
		GameState: snapshot,
		Message:   snapshot.Message,
		Events:    events,
		Step:      &step,
	}

	s.save(sessionID, "action")
	return result, nil
}

// BulkAct applies actions in order, stopping when the game ends. All actions
// are parsed before any is applied so a typo never leaves a half-applied batch.
func (s *gameServiceImpl) BulkAct(ctx context.Context, sessionID string, actions []string, reset bool) (*BulkActionResult, error) {
	parsed := make([]engine.Action, 0, len(actions))
	for i, a := range actions {
		action, err := engine.ParseAction(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		parsed = append(parsed, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.touch(sessionID)

	result := &BulkActionResult{
		RequestedActions: len(parsed),
		Success:          true,
		Events:           make([]GameEvent, 0),
	}

	if len(parsed) > engine.MaxBulkActions {
		result.Truncated = true
		result.Limit = engine.MaxBulkActions
		parsed = parsed[:engine.MaxBulkActions]
	}

	sess.Lock()
	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, resetEvent())
	}

	result.StartScore = sess.Engine.GetScore()
	for i, action := range parsed {
		if sess.Engine.IsGameOver() {
			result.Success = false
			result.StopReasonCode = StopGameOver
			result.StoppedOnAction = i + 1
			break
		}

		kind := sess.Engine.GetState().CurrentKind()
		outcome := sess.Engine.Apply(action)
		result.ActionsExecuted++
		result.LinesCleared += outcome.LinesCleared
		if outcome.Locked {
			result.PiecesLocked++
		}
		result.Steps = append(result.Steps, stepInfo(i+1, outcome, kind))
		result.Events = append(result.Events, outcomeEvents(outcome, kind, sess.Engine.GetLevel(), sess.Config)...)
	}

	result.GameState = sess.Engine.Snapshot()
	sess.Unlock()

	result.EndScore = result.GameState.Score
	result.ScoreDelta = result.EndScore - result.StartScore
	result.GameOver = result.GameState.GameOver
	result.Message = result.GameState.Message

	if result.StopReasonCode == "" {
		switch {
		case result.GameOver:
			result.StopReasonCode = StopGameOver
		case result.Truncated:
			result.StopReasonCode = StopTruncated
		}
	}

	s.save(sessionID, "bulk actions")
	return result, nil
}

// Reset starts a fresh game in a session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.touch(sessionID)

	sess.Lock()
	sess.Engine.Reset()
	snapshot := sess.Engine.Snapshot()
	sess.Unlock()

	s.save(sessionID, "reset")
	return snapshot, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.touch(sessionID)

	return sess.View(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	history := append([]engine.MoveHistoryEntry(nil), sess.Engine.GetMoveHistory()...)
	sess.Unlock()

	return paginate(history, opts), nil
}

// paginate slices history according to opts after applying defaults
// (page 1, limit 20 capped at 100, newest first).
func paginate(history []engine.MoveHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := min((opts.Page-1)*opts.Limit, total)
	end := min(start+opts.Limit, total)

	moves := make([]engine.MoveHistoryEntry, 0, end-start)
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else {
		moves = append(moves, history[start:end]...)
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// Suggest searches placements for the session's current piece without
// changing the game.
func (s *gameServiceImpl) Suggest(ctx context.Context, sessionID string) (*SuggestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	state := sess.Engine.GetState().Clone()
	sess.Unlock()

	placements := strategy.Enumerate(state, strategy.DefaultWeights)
	if len(placements) == 0 {
		return nil, strategy.ErrNoPlacement
	}

	result := &SuggestResult{
		Best:  &placements[0],
		Board: engine.RenderBoard(state),
	}
	if rest := placements[1:]; len(rest) > 0 {
		result.Alternatives = rest[:min(len(rest), maxAlternatives)]
	}
	return result, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configID string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configID)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configID string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configID, config)
}

func (s *gameServiceImpl) touch(sessionID string) {
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		s.log.Printf("Warning: Failed to update access time for session %s: %v", sessionID, err)
	}
}

func (s *gameServiceImpl) save(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Printf("Warning: Failed to persist session %s after %s: %v", sessionID, after, err)
	}
}

func resetEvent() GameEvent {
	return GameEvent{
		Type:      EventReset,
		Message:   "Game reset to a fresh board",
		Timestamp: time.Now(),
	}
}

func stepInfo(idx int, outcome engine.ActionOutcome, kind engine.Kind) StepInfo {
	return StepInfo{
		Idx:          idx,
		Action:       outcome.Action,
		Kind:         kind,
		Changed:      outcome.Changed,
		Locked:       outcome.Locked,
		LinesCleared: outcome.LinesCleared,
		ScoreDelta:   outcome.ScoreDelta,
		LevelUp:      outcome.LevelUp,
		Spawned:      outcome.Spawned,
		GameOver:     outcome.GameOver,
	}
}

// outcomeEvents turns an applied action into the events clients display.
func outcomeEvents(outcome engine.ActionOutcome, kind engine.Kind, level int, config *engine.GameConfig) []GameEvent {
	now := time.Now()
	events := []GameEvent{{
		Type:      EventAction,
		Message:   fmt.Sprintf("%s %s", outcome.Action, kind),
		Timestamp: now,
	}}
	if !outcome.Changed {
		events[0].Message += " (no effect)"
		return events
	}

	if outcome.Held {
		events = append(events, GameEvent{
			Type:      EventHold,
			Message:   fmt.Sprintf("Held %s", kind),
			Timestamp: now,
		})
	}
	if outcome.Locked {
		events = append(events, GameEvent{
			Type:      EventLock,
			Message:   fmt.Sprintf("%s locked", kind),
			Timestamp: now,
		})
	}
	if outcome.LinesCleared > 0 {
		events = append(events, GameEvent{
			Type:      EventLineClear,
			Message:   fmt.Sprintf("Cleared %d line(s) for %d points", outcome.LinesCleared, outcome.ScoreDelta),
			Timestamp: now,
			Lines:     outcome.LinesCleared,
		})
	}
	if outcome.LevelUp {
		events = append(events, GameEvent{
			Type:      EventLevelUp,
			Message:   fmt.Sprintf("Level %d reached", level),
			Timestamp: now,
			Level:     level,
		})
	}
	if outcome.GameOver {
		msg := "Game over"
		if config != nil && config.Messages.GameOver != "" {
			msg = config.Messages.GameOver
		}
		events = append(events, GameEvent{
			Type:      EventGameOver,
			Message:   msg,
			Timestamp: now,
		})
	}
	return events
}
