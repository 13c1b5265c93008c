// Package tui is a terminal client built on tcell.
//
// The App draws the visible part of the board, the active piece with its
// ghost, next and held previews and the counters, and turns key presses into
// engine actions:
//
//	←/→ move   ↓ soft drop   ↑ or x rotate   z rotate back
//	c hold     space hard drop   r restart   q or Esc quit
//
// A Driver supplies the game. LocalDriver runs an engine in process and
// applies gravity on a timer following the level's tick delay. RemoteDriver
// plays a server session: actions go through the REST API and state arrives
// on the session websocket, so other clients of the same session see the
// same game.
//
// Usage:
//
//	screen, _ := tcell.NewScreen()
//	screen.Init()
//	defer screen.Fini()
//	driver, _ := tui.NewLocalDriver(engine.DefaultConfig())
//	err := tui.NewApp(screen, driver, tui.Silent{}).Run(ctx)
package tui
