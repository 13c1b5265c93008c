package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
)

func createTestConfig() *engine.GameConfig {
	seed := uint64(5)
	cfg := engine.DefaultConfig()
	cfg.Name = "Test Config"
	cfg.Description = "Test configuration"
	cfg.Seed = &seed
	return cfg
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", "classic", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.ConfigID != "classic" {
			t.Errorf("Expected config ID 'classic', got '%s'", session.ConfigID)
		}
		if session.Engine == nil {
			t.Error("Expected engine to be initialized")
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", "classic", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got '%s'", session.ID)
		}
	})

	t.Run("duplicate ID is case-insensitive", func(t *testing.T) {
		if _, err := manager.Create("TEST-SESSION", "classic", config); !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid ID", func(t *testing.T) {
		for _, id := range []string{"../etc", "has space", strings.Repeat("a", 65)} {
			if _, err := manager.Create(id, "classic", config); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Expected ErrInvalidSessionID for %q, got %v", id, err)
			}
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.Columns = 1
		if _, err := manager.Create("bad-config", "bad", bad); !errors.Is(err, engine.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("AbCd", "classic", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"exact case", "AbCd", nil},
		{"lower case", "abcd", nil},
		{"upper case", "ABCD", nil},
		{"missing", "zzzz", ErrSessionNotFound},
		{"invalid", "a/b", ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := manager.Get(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if session != created {
				t.Error("Expected the same session instance")
			}
		})
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	first, err := manager.GetOrCreate("play", "classic", config)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := manager.GetOrCreate("PLAY", "classic", config)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first != second {
		t.Error("Expected GetOrCreate to return the existing session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_DeleteAndList(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	for _, id := range []string{"one", "two", "three"} {
		if _, err := manager.Create(id, "classic", config); err != nil {
			t.Fatalf("Failed to create %s: %v", id, err)
		}
	}
	if got := len(manager.List()); got != 3 {
		t.Fatalf("Expected 3 sessions, got %d", got)
	}

	if err := manager.Delete("TWO"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := manager.Delete("two"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
	if err := manager.DeleteFromMemory("one"); err != nil {
		t.Errorf("DeleteFromMemory failed: %v", err)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session left, got %d", manager.Count())
	}
}

func TestManager_CleanupExpiredSessions(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	old, _ := manager.Create("old", "classic", config)
	if _, err := manager.Create("fresh", "classic", config); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	old.Touch(time.Now().Add(-2 * time.Hour))

	if removed := manager.CleanupExpiredSessions(time.Hour); removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if _, err := manager.Get("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected expired session to be gone, got %v", err)
	}
	if _, err := manager.Get("fresh"); err != nil {
		t.Errorf("Fresh session should survive cleanup: %v", err)
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("touch", "classic", createTestConfig())
	session.Touch(time.Now().Add(-time.Hour))
	before := session.LastAccessedAt

	if err := manager.UpdateLastAccessed("TOUCH"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !session.LastAccessedAt.After(before) {
		t.Error("Expected last accessed time to move forward")
	}
	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_ConcurrentCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := manager.Create("", "classic", config)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			ids <- session.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("Duplicate session ID %s", id)
		}
		seen[id] = true
	}
	if manager.Count() != 50 {
		t.Errorf("Expected 50 sessions, got %d", manager.Count())
	}
}
