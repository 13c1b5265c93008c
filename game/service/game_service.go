package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Act(ctx context.Context, sessionID, action string, reset bool) (*ActionResult, error)
	BulkAct(ctx context.Context, sessionID string, actions []string, reset bool) (*BulkActionResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
	Suggest(ctx context.Context, sessionID string) (*SuggestResult, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configID string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configID string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, config *engine.GameConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Logger is the logging dependency of the service. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Session represents an active game session. Engine calls must hold the
// session lock; Lock and Unlock expose it to callers outside this package.
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu       sync.Mutex
	accessMu sync.Mutex
}

// Touch records an access at now
func (s *Session) Touch(now time.Time) {
	s.accessMu.Lock()
	s.LastAccessedAt = now
	s.accessMu.Unlock()
}

// AccessedAt returns the time of the last recorded access
func (s *Session) AccessedAt() time.Time {
	s.accessMu.Lock()
	defer s.accessMu.Unlock()
	return s.LastAccessedAt
}

// Lock acquires exclusive access to the session's engine
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's engine
func (s *Session) Unlock() { s.mu.Unlock() }

// Persist returns the full engine snapshot, history included, under the
// session lock.
func (s *Session) Persist() *engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.Persist()
}

// View returns the client snapshot under the session lock.
func (s *Session) View() *engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engine.Snapshot()
}
