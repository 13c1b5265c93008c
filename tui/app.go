package tui

import (
	"context"
	"errors"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/tetris-engine/game/engine"
)

// ErrDisconnected is returned by Run when the driver stops sending state
var ErrDisconnected = errors.New("game stream closed")

// App runs the terminal client on an initialized screen
type App struct {
	screen tcell.Screen
	driver Driver
	sound  Sound

	state  *engine.Snapshot
	status string
}

// NewApp creates a client. sound may be nil.
func NewApp(screen tcell.Screen, driver Driver, sound Sound) *App {
	if sound == nil {
		sound = Silent{}
	}
	return &App{screen: screen, driver: driver, sound: sound}
}

// Run plays until the user quits, ctx is done or the driver's stream ends.
// The caller owns the screen and finalizes it after Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := a.driver.Start(ctx)
	if err != nil {
		return err
	}

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.draw()
	for {
		select {
		case <-ctx.Done():
			return nil

		case s, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDisconnected
			}
			a.update(s)
			a.draw()

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				a.screen.Sync()
			case *tcell.EventKey:
				if quit := a.handleKey(ctx, ev); quit {
					return nil
				}
			}
			a.draw()
		}
	}
}

// handleKey applies a key press and reports whether the user quit
func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	var err error
	switch cmd, action := KeyCommand(ev); cmd {
	case CommandQuit:
		return true
	case CommandRestart:
		err = a.driver.Reset(ctx)
	case CommandAction:
		if a.state != nil && a.state.GameOver {
			return false
		}
		err = a.driver.Act(ctx, action)
	default:
		return false
	}

	if err != nil {
		a.status = err.Error()
	} else {
		a.status = ""
	}
	return false
}

// update records a new state and plays sounds for what changed
func (a *App) update(s *engine.Snapshot) {
	prev := a.state
	a.state = s
	if prev == nil {
		return
	}
	if cleared := s.LinesCleared - prev.LinesCleared; cleared > 0 {
		a.sound.LineClear(cleared)
	}
	if s.GameOver && !prev.GameOver {
		a.sound.GameOver()
	}
}

func (a *App) draw() {
	Draw(a.screen, a.state, a.status)
	a.screen.Show()
}
