package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

const sessionExt = ".json"

// ConfigLoader resolves the preset a persisted session was created with
type ConfigLoader interface {
	LoadConfig(name string) (*engine.GameConfig, error)
}

// FilePersistence stores one JSON file per session in a directory. File
// names are the lower-cased session ID.
type FilePersistence struct {
	dir     string
	presets ConfigLoader
}

// NewFilePersistence creates dir if needed and stores sessions in it
func NewFilePersistence(sessionsDir string, configManager ConfigLoader) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{dir: sessionsDir, presets: configManager}, nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.dir, strings.ToLower(id)+sessionExt)
}

// Save writes the session to a temporary file and renames it into place so
// readers never observe a partial write.
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	data, err := json.MarshalIndent(PersistedSessionData{
		ID:             session.ID,
		ConfigID:       session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.AccessedAt(),
		Game:           session.Persist(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	tmp, err := os.CreateTemp(fp.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), fp.path(session.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load rebuilds a session: the preset is resolved by config ID and the
// saved game is restored onto a fresh engine.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	if ValidateID(id) != nil {
		return nil, ErrSessionNotFound
	}

	raw, err := os.ReadFile(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	preset, err := fp.presets.LoadConfig(data.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigID, err)
	}

	eng, err := engine.NewEngine(preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}
	if err := eng.Restore(data.Game); err != nil {
		return nil, fmt.Errorf("failed to restore game state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigID,
		Engine:         eng,
		Config:         preset,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}
	if err := os.Remove(fp.path(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns the IDs of all session files. Files whose names are not
// valid session IDs are ignored.
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), sessionExt)
		if entry.IsDir() || !ok || ValidateID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Exists reports whether a session file exists for id
func (fp *FilePersistence) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	_, err := os.Stat(fp.path(id))
	return err == nil
}
