package tui

import (
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/tetris-engine/game/engine"
)

// Command is what a key press asks the client to do
type Command int

const (
	CommandNone Command = iota
	CommandAction
	CommandRestart
	CommandQuit
)

// KeyCommand maps a key press to a command. For CommandAction the action to
// apply is returned as well.
func KeyCommand(ev *tcell.EventKey) (Command, engine.Action) {
	switch ev.Key() {
	case tcell.KeyLeft:
		return CommandAction, engine.ActionLeft
	case tcell.KeyRight:
		return CommandAction, engine.ActionRight
	case tcell.KeyDown:
		return CommandAction, engine.ActionDown
	case tcell.KeyUp:
		return CommandAction, engine.ActionRotateCW
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return CommandQuit, ""
	case tcell.KeyRune:
	default:
		return CommandNone, ""
	}

	switch unicode.ToLower(ev.Rune()) {
	case ' ':
		return CommandAction, engine.ActionDrop
	case 'x':
		return CommandAction, engine.ActionRotateCW
	case 'z':
		return CommandAction, engine.ActionRotateCCW
	case 'c':
		return CommandAction, engine.ActionHold
	case 'r':
		return CommandRestart, ""
	case 'q':
		return CommandQuit, ""
	}
	return CommandNone, ""
}

// keyHelp is shown next to the board
var keyHelp = []string{
	"←/→   move",
	"↓     soft drop",
	"↑ x   rotate",
	"z     rotate back",
	"c     hold",
	"space hard drop",
	"r     restart",
	"q     quit",
}
