package service

import (
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/strategy"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigID       string             `json:"config_id"`
	Token          string             `json:"token,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.Snapshot   `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// ActionResult contains the result of a single action
type ActionResult struct {
	Success   bool             `json:"success"`
	GameState *engine.Snapshot `json:"game_state"`
	Message   string           `json:"message,omitempty"`
	Events    []GameEvent      `json:"events,omitempty"`
	Step      *StepInfo        `json:"step,omitempty"`
}

// Stop reason codes reported by BulkAct.
const (
	StopGameOver  = "game_over"
	StopTruncated = "truncated"
)

// BulkActionResult contains the result of several actions applied in order
type BulkActionResult struct {
	ActionsExecuted  int    `json:"actions_executed"`
	RequestedActions int    `json:"requested_actions"`
	Success          bool   `json:"success"`
	StopReasonCode   string `json:"stop_reason_code,omitempty"`
	StoppedOnAction  int    `json:"stopped_on_action,omitempty"` // 1-based
	Truncated        bool   `json:"truncated,omitempty"`
	Limit            int    `json:"limit,omitempty"`

	StartScore   int `json:"start_score"`
	EndScore     int `json:"end_score"`
	ScoreDelta   int `json:"score_delta"`
	LinesCleared int `json:"lines_cleared"`
	PiecesLocked int `json:"pieces_locked"`

	Steps     []StepInfo       `json:"steps,omitempty"`
	Events    []GameEvent      `json:"events"`
	GameState *engine.Snapshot `json:"game_state"`
	GameOver  bool             `json:"game_over"`
	Message   string           `json:"message,omitempty"`
}

// StepInfo is a compact record of one executed action
type StepInfo struct {
	Idx          int           `json:"idx"`
	Action       engine.Action `json:"action"`
	Kind         engine.Kind   `json:"kind"`
	Changed      bool          `json:"changed"`
	Locked       bool          `json:"locked,omitempty"`
	LinesCleared int           `json:"lines_cleared,omitempty"`
	ScoreDelta   int           `json:"score_delta,omitempty"`
	LevelUp      bool          `json:"level_up,omitempty"`
	Spawned      engine.Kind   `json:"spawned,omitempty"`
	GameOver     bool          `json:"game_over,omitempty"`
}

// Event types carried in GameEvent.Type.
const (
	EventAction    = "action"
	EventLock      = "lock"
	EventLineClear = "line_clear"
	EventLevelUp   = "level_up"
	EventHold      = "hold"
	EventGameOver  = "game_over"
	EventReset     = "reset"
)

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Lines     int       `json:"lines,omitempty"`
	Level     int       `json:"level,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Seeded      bool   `json:"seeded"`
}

// SuggestResult is the best placement for the current piece plus the
// runner-up candidates.
type SuggestResult struct {
	Best         *strategy.Placement  `json:"best"`
	Alternatives []strategy.Placement `json:"alternatives,omitempty"`
	Board        string               `json:"board"`
}
