package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Kind identifies one of the seven tetromino shapes. The numeric value is the
// id written into grid cells when a piece locks.
type Kind uint8

const (
	KindNone Kind = iota
	KindI
	KindJ
	KindL
	KindO
	KindS
	KindT
	KindZ
)

const (
	// Grid geometry
	DefaultRows    = 22
	DefaultColumns = 10
	HiddenRows     = 2

	// Scoring
	LevelThreshold = 1000

	// Validation constants
	MinColumns          = 4
	MaxColumns          = 40
	MinRows             = HiddenRows + 4
	MaxRows             = 60
	MaxBulkActions      = 50
	WebSocketBufferSize = 256
)

// AllKinds lists the playable kinds in id order.
var AllKinds = []Kind{KindI, KindJ, KindL, KindO, KindS, KindT, KindZ}

var kindNames = map[Kind]string{
	KindNone: "none",
	KindI:    "I",
	KindJ:    "J",
	KindL:    "L",
	KindO:    "O",
	KindS:    "S",
	KindT:    "T",
	KindZ:    "Z",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the seven playable kinds.
func (k Kind) Valid() bool {
	return k >= KindI && k <= KindZ
}

// ParseKind converts a letter such as "T" (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if kind != KindNone && name == s {
			return kind, nil
		}
	}
	return KindNone, fmt.Errorf("unknown piece kind %q", s)
}

// MarshalText encodes a kind as its letter so JSON views read "T" rather than 6.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts a letter, "none" or the empty string.
func (k *Kind) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || strings.EqualFold(s, "none") {
		*k = KindNone
		return nil
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Position is a (row, column) grid coordinate. Row 0 is the top hidden row.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{Row: p.Row + d.Row, Col: p.Col + d.Col}
}

// Status is the externally observable state of a game.
type Status string

const (
	StatusActive   Status = "active"
	StatusGameOver Status = "game_over"
)

// Action names a player or driver input accepted by the engine.
type Action string

const (
	ActionLeft      Action = "left"
	ActionRight     Action = "right"
	ActionDown      Action = "down"
	ActionRotateCW  Action = "rotate_cw"
	ActionRotateCCW Action = "rotate_ccw"
	ActionHold      Action = "hold"
	ActionDrop      Action = "drop"
	ActionTick      Action = "tick"
)

// AllActions lists every accepted action.
var AllActions = []Action{
	ActionLeft, ActionRight, ActionDown, ActionRotateCW,
	ActionRotateCCW, ActionHold, ActionDrop, ActionTick,
}

var actionAliases = map[string]Action{
	"cw":        ActionRotateCW,
	"rotate":    ActionRotateCW,
	"ccw":       ActionRotateCCW,
	"soft_drop": ActionDown,
	"hard_drop": ActionDrop,
	"gravity":   ActionTick,
}

// ParseAction normalizes user input into an Action.
func ParseAction(s string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for _, a := range AllActions {
		if string(a) == name {
			return a, nil
		}
	}
	if a, ok := actionAliases[name]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// MoveHistoryEntry records one applied action.
type MoveHistoryEntry struct {
	Action       Action `json:"action"`
	Kind         Kind   `json:"kind"`
	Changed      bool   `json:"changed"`
	Locked       bool   `json:"locked,omitempty"`
	LinesCleared int    `json:"lines_cleared,omitempty"`
	Score        int    `json:"score"`
	Timestamp    int64  `json:"timestamp"`
	MoveNumber   int    `json:"move_number"`
}

// ActionOutcome summarizes what a single Apply call did to the game.
type ActionOutcome struct {
	Action       Action `json:"action"`
	Changed      bool   `json:"changed"`
	Locked       bool   `json:"locked"`
	LinesCleared int    `json:"lines_cleared"`
	ScoreDelta   int    `json:"score_delta"`
	LevelUp      bool   `json:"level_up"`
	Held         bool   `json:"held"`
	GameOver     bool   `json:"game_over"`
	Spawned      Kind   `json:"spawned,omitempty"`
}
