package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultConfigID is the preset used when a session does not name one.
const DefaultConfigID = "classic"

const presetExt = ".json"

var configIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Manager loads presets from a directory and caches them by config ID
type Manager struct {
	dir string

	mu       sync.RWMutex
	presets  map[string]*engine.GameConfig
	fallback *engine.GameConfig
}

// NewManager creates a manager for dir, which must exist
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		dir:     configDir,
		presets: make(map[string]*engine.GameConfig),
	}
	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return m, nil
}

// configID strips an optional .json suffix and rejects names that could
// escape the config directory.
func configID(name string) (string, error) {
	id := strings.TrimSuffix(name, presetExt)
	if !configIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}
	return id, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+presetExt)
}

func (m *Manager) cached(id string) (*engine.GameConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preset, ok := m.presets[id]
	return preset, ok
}

// readPreset parses and validates one preset file
func (m *Manager) readPreset(id string) (*engine.GameConfig, error) {
	data, err := os.ReadFile(m.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var preset engine.GameConfig
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, id, err)
	}
	if err := engine.ValidateGameConfig(&preset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &preset, nil
}

// LoadConfig returns the preset with the given config ID. A trailing .json
// is accepted.
func (m *Manager) LoadConfig(name string) (*engine.GameConfig, error) {
	id, err := configID(name)
	if err != nil {
		return nil, err
	}
	if preset, ok := m.cached(id); ok {
		return preset, nil
	}

	preset, err := m.readPreset(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep the first copy if another caller loaded it meanwhile
	if existing, ok := m.presets[id]; ok {
		return existing, nil
	}
	m.presets[id] = preset
	return preset, nil
}

// ListConfigs describes every valid preset in the directory, sorted by
// config ID. Files that fail to load are left out.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var infos []*service.ConfigInfo
	for _, entry := range entries {
		id, isPreset := strings.CutSuffix(entry.Name(), presetExt)
		if entry.IsDir() || !isPreset {
			continue
		}

		preset, err := m.LoadConfig(id)
		if err != nil {
			continue
		}

		infos = append(infos, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        preset.Name,
			Description: preset.Description,
			Rows:        preset.Rows,
			Columns:     preset.Columns,
			Seeded:      preset.Seed != nil,
		})
	}

	slices.SortFunc(infos, func(a, b *service.ConfigInfo) int { return strings.Compare(a.ConfigID, b.ConfigID) })
	return infos, nil
}

// GetDefault returns the preset used when none is named
func (m *Manager) GetDefault() *engine.GameConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fallback
}

// SetDefault makes the named preset the default
func (m *Manager) SetDefault(name string) error {
	preset, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = preset
	return nil
}

// RefreshCache drops every cached preset and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	clear(m.presets)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// Count returns the number of cached presets
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.presets)
}

// loadDefaultConfig picks classic, else the first valid preset, else the
// built-in engine.DefaultConfig.
func (m *Manager) loadDefaultConfig() error {
	preset, err := m.LoadConfig(DefaultConfigID)
	if err != nil {
		preset = engine.DefaultConfig()
		if infos, listErr := m.ListConfigs(); listErr == nil && len(infos) > 0 {
			if first, err := m.LoadConfig(infos[0].ConfigID); err == nil {
				preset = first
			}
		}
	}

	m.mu.Lock()
	m.fallback = preset
	m.mu.Unlock()
	return nil
}

// SaveConfig validates a preset and writes it to the directory under name
func (m *Manager) SaveConfig(name string, config *engine.GameConfig) error {
	id, err := configID(name)
	if err != nil {
		return err
	}
	if err := engine.ValidateGameConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.path(id), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.presets[id] = config
	m.mu.Unlock()
	return nil
}
