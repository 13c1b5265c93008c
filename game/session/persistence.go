package session

import (
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

// SessionPersistence is the durable store behind a Manager. IDs are matched
// without regard to case.
type SessionPersistence interface {
	Save(session *service.Session) error
	// Load returns ErrSessionNotFound when nothing is stored under id.
	Load(id string) (*service.Session, error)
	Delete(id string) error
	ListAll() ([]string, error)
	Exists(id string) bool
}

// PersistedSessionData is the on-disk form of a session. Game carries enough
// to resume play exactly, including the randomizer state.
type PersistedSessionData struct {
	ID             string           `json:"id"`
	ConfigID       string           `json:"config_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Game           *engine.Snapshot `json:"game"`
}
