package session

import (
	"cmp"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// generatedIDBytes gives four hex characters, short enough to type into a
// terminal client.
const generatedIDBytes = 2

// Logger is the logging dependency of the manager. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Manager keeps the live games keyed by lower-cased session ID. With a
// SessionPersistence every change is written through, and sessions missing
// from memory are loaded on first access.
type Manager struct {
	mu          sync.RWMutex
	games       map[string]*service.Session
	persistence SessionPersistence
	log         Logger
}

// NewManager creates a memory-only session manager
func NewManager() *Manager {
	return &Manager{
		games: make(map[string]*service.Session),
		log:   log.Default(),
	}
}

// NewManagerWithPersistence creates a manager that writes sessions through
// to persistence.
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	m := NewManager()
	m.persistence = persistence
	return m
}

// SetLogger replaces the logger used for persistence warnings
func (m *Manager) SetLogger(l Logger) {
	m.log = l
}

// ValidateID reports whether id can be used as a session identifier.
func ValidateID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

func key(id string) string {
	return strings.ToLower(id)
}

// persist writes s through, logging instead of failing; the in-memory game
// stays authoritative.
func (m *Manager) persist(s *service.Session, after string) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(s); err != nil {
		m.log.Printf("Warning: Failed to persist session %s after %s: %v", s.ID, after, err)
	}
}

// Create starts a game for config under id, or under a generated ID when id
// is empty.
func (m *Manager) Create(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	if id != "" {
		if err := ValidateID(id); err != nil {
			return nil, err
		}
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.newID()
	} else if _, taken := m.games[key(id)]; taken {
		return nil, ErrSessionAlreadyExists
	}

	now := time.Now()
	s := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.games[key(id)] = s
	m.persist(s, "create")

	return s, nil
}

// Get returns the session with id, ignoring case
func (m *Manager) Get(id string) (*service.Session, error) {
	if ValidateID(id) != nil {
		return nil, ErrSessionNotFound
	}
	k := key(id)

	m.mu.RLock()
	s, ok := m.games[k]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	if m.persistence == nil || !m.persistence.Exists(k) {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(k)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent Get may have loaded it first
	if s, ok := m.games[k]; ok {
		return s, nil
	}
	m.games[k] = loaded
	return loaded, nil
}

// GetOrCreate returns the session with id, creating it when it does not exist
func (m *Manager) GetOrCreate(id, configID string, config *engine.GameConfig) (*service.Session, error) {
	s, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, config)
	}
	return s, err
}

func (m *Manager) all() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*service.Session, 0, len(m.games))
	for _, s := range m.games {
		sessions = append(sessions, s)
	}
	return sessions
}

// List returns the sessions in memory, oldest first
func (m *Manager) List() []*service.Session {
	sessions := m.all()
	slices.SortFunc(sessions, func(a, b *service.Session) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return sessions
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	if ValidateID(id) != nil {
		return ErrSessionNotFound
	}
	k := key(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.games[k]
	delete(m.games, k)

	onDisk := m.persistence != nil && m.persistence.Exists(k)
	if onDisk {
		if err := m.persistence.Delete(k); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
	}

	if !inMemory && !onDisk {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory drops a session from memory only, e.g. after its file
// was removed by hand.
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(id)
	if _, ok := m.games[k]; !ok {
		return ErrSessionNotFound
	}
	delete(m.games, k)
	return nil
}

// UpdateLastAccessed marks a session as used now
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.games[key(id)]
	if !ok {
		return ErrSessionNotFound
	}
	s.Touch(time.Now())
	m.persist(s, "access update")
	return nil
}

// Save writes one session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	s, ok := m.games[key(id)]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	return m.persistence.Save(s)
}

// CleanupExpiredSessions drops sessions not accessed within maxAge from
// memory and returns how many were dropped. Persisted copies stay on disk
// and reload on demand.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.games)
	for k, s := range m.games {
		if s.AccessedAt().Before(cutoff) {
			delete(m.games, k)
		}
	}
	return before - len(m.games)
}

// Count returns the number of sessions in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// newID returns a random unused ID. The caller must hold m.mu.
func (m *Manager) newID() string {
	buf := make([]byte, generatedIDBytes)
	for {
		rand.Read(buf)
		id := hex.EncodeToString(buf)
		if _, taken := m.games[id]; taken {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(id) {
			continue
		}
		return id
	}
}

// LoadPersistedSessions brings every persisted session into memory. Files
// that fail to load are skipped with a warning.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		k := key(id)
		if _, ok := m.games[k]; ok {
			continue
		}

		s, err := m.persistence.Load(id)
		if err != nil {
			m.log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}
		m.games[k] = s
		loaded++
	}

	if loaded > 0 {
		m.log.Printf("Loaded %d persisted sessions from storage", loaded)
	}
	return nil
}

// SaveAllSessions writes every in-memory session to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	var failed int
	for _, s := range m.all() {
		if err := m.persistence.Save(s); err != nil {
			m.log.Printf("Warning: Failed to save session %s: %v", s.ID, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}
