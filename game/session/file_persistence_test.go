package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/tetris-engine/game/config"
	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()
	configManager, err := config.NewManager(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager, dir
}

func newTestSession(t *testing.T, configManager *config.Manager, id, configID string) *service.Session {
	t.Helper()
	gameConfig, err := configManager.LoadConfig(configID)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	eng, err := engine.NewEngine(gameConfig)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &service.Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Config:         gameConfig,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	persistence, configManager, _ := newTestPersistence(t)
	session := newTestSession(t, configManager, "test1", "classic")

	t.Run("save and load", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loaded.ID)
		}
		if loaded.ConfigID != "classic" {
			t.Errorf("Expected config ID classic, got %s", loaded.ConfigID)
		}
		if loaded.Config.Name != session.Config.Name {
			t.Errorf("Expected config name %s, got %s", session.Config.Name, loaded.Config.Name)
		}
	})

	t.Run("restored game continues identically", func(t *testing.T) {
		for _, a := range []engine.Action{engine.ActionLeft, engine.ActionDrop, engine.ActionHold, engine.ActionRotateCW, engine.ActionDrop} {
			session.Engine.Apply(a)
		}
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}

		if got, want := len(loaded.Engine.GetMoveHistory()), len(session.Engine.GetMoveHistory()); got != want {
			t.Errorf("Expected %d history entries, got %d", want, got)
		}

		// The same inputs must deal the same pieces on both engines.
		for i := 0; i < 10; i++ {
			session.Engine.Apply(engine.ActionDrop)
			loaded.Engine.Apply(engine.ActionDrop)
		}
		want := session.Engine.Snapshot()
		got := loaded.Engine.Snapshot()
		if got.Board != want.Board {
			t.Errorf("Boards diverged after restore:\n%s\nvs\n%s", got.Board, want.Board)
		}
		if got.Next != want.Next || got.Held != want.Held || got.Score != want.Score {
			t.Errorf("State diverged: next %v/%v held %v/%v score %d/%d",
				got.Next, want.Next, got.Held, want.Held, got.Score, want.Score)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		other := newTestSession(t, configManager, "Test2", "wide")
		if err := persistence.Save(other); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 persisted sessions, got %v", ids)
		}

		if err := persistence.Delete("TEST2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}
		if err := persistence.Delete("test2"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("load missing or invalid", func(t *testing.T) {
		if _, err := persistence.Load("nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := persistence.Load("../../configs/classic"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound for traversal, got %v", err)
		}
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)
	session := newTestSession(t, configManager, "Shape", "practice")
	session.Engine.Apply(engine.ActionDrop)

	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "shape.json"))
	if err != nil {
		t.Fatalf("Expected lower-case session file: %v", err)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "config_id", "created_at", "last_accessed_at", "game"} {
		if _, ok := data[field]; !ok {
			t.Errorf("Expected field %q in session file", field)
		}
	}

	var game map[string]json.RawMessage
	if err := json.Unmarshal(data["game"], &game); err != nil {
		t.Fatalf("Game snapshot is not an object: %v", err)
	}
	for _, field := range []string{"grid", "rng_state", "move_history", "score"} {
		if _, ok := game[field]; !ok {
			t.Errorf("Expected field %q in game snapshot", field)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the session file, temp files left behind: %d entries", len(entries))
	}
}

func TestFilePersistenceCorruptFile(t *testing.T) {
	persistence, _, dir := newTestPersistence(t)
	if err := os.WriteFile(filepath.Join(dir, "bad1.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := persistence.Load("bad1"); err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected unmarshal error, got %v", err)
	}
}
