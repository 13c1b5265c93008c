package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by ValidateGameConfig.
var ErrInvalidConfig = errors.New("invalid config")

// Tick defaults in milliseconds.
const (
	DefaultTickBaseMS = 500
	DefaultTickMinMS  = 100
	DefaultTickStepMS = 50
)

// TickConfig controls gravity cadence. The engine never schedules itself;
// drivers read TickDelay and call ActionTick on their own timer.
type TickConfig struct {
	BaseMS int `json:"base_ms"`
	MinMS  int `json:"min_ms"`
	StepMS int `json:"step_ms"`
}

// GameConfig is a game preset loaded from JSON.
type GameConfig struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Rows        int        `json:"rows"`
	Columns     int        `json:"columns"`
	Seed        *uint64    `json:"seed,omitempty"`
	Tick        TickConfig `json:"tick"`
	Messages    struct {
		Welcome  string `json:"welcome"`
		GameOver string `json:"game_over"`
	} `json:"messages"`
}

// DefaultConfig returns the built-in classic preset.
func DefaultConfig() *GameConfig {
	cfg := &GameConfig{
		Name:        "Classic",
		Description: "Standard 20x10 visible field with two hidden spawn rows",
		Rows:        DefaultRows,
		Columns:     DefaultColumns,
		Tick: TickConfig{
			BaseMS: DefaultTickBaseMS,
			MinMS:  DefaultTickMinMS,
			StepMS: DefaultTickStepMS,
		},
	}
	cfg.Messages.Welcome = "Clear lines to score. Every 1000 points raises the level."
	cfg.Messages.GameOver = "Game over! The stack reached the spawn area."
	return cfg
}

// ValidateGameConfig checks a preset for playable dimensions and timings.
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if config.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidConfig)
	}
	if err := validateDimensions(config.Rows, config.Columns); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if config.Tick.MinMS < 1 {
		return fmt.Errorf("%w: tick.min_ms must be at least 1, got %d", ErrInvalidConfig, config.Tick.MinMS)
	}
	if config.Tick.BaseMS < config.Tick.MinMS {
		return fmt.Errorf("%w: tick.base_ms (%d) must not be below tick.min_ms (%d)", ErrInvalidConfig, config.Tick.BaseMS, config.Tick.MinMS)
	}
	if config.Tick.StepMS < 0 {
		return fmt.Errorf("%w: tick.step_ms must not be negative, got %d", ErrInvalidConfig, config.Tick.StepMS)
	}
	return nil
}

// TickDelay returns the gravity interval for a level.
func (t TickConfig) TickDelay(level int) time.Duration {
	ms := t.BaseMS - t.StepMS*level
	if ms < t.MinMS {
		ms = t.MinMS
	}
	return time.Duration(ms) * time.Millisecond
}

// NewGameStateFromConfig creates a game for a preset. A nil config uses
// DefaultConfig; a preset without a seed gets a random one.
func NewGameStateFromConfig(config *GameConfig) (*GameState, error) {
	if config == nil {
		config = DefaultConfig()
	}
	seed := RandomSeed()
	if config.Seed != nil {
		seed = *config.Seed
	}
	return NewGameStateWithOptions(config.Rows, config.Columns, seed)
}
