package tui

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/tetris-engine/game/engine"
)

// Driver supplies game state to the terminal client and applies its input.
type Driver interface {
	// Start begins play and returns the stream of state updates. Only the
	// latest state is buffered. The channel is closed once ctx is done or the
	// driver loses its game.
	Start(ctx context.Context) (<-chan *engine.Snapshot, error)
	Act(ctx context.Context, action engine.Action) error
	Reset(ctx context.Context) error
}

// feed is a latest-wins snapshot channel that can be closed while producers
// are still running.
type feed struct {
	mu     sync.Mutex
	ch     chan *engine.Snapshot
	latest *engine.Snapshot
	closed bool
}

func newFeed() *feed {
	return &feed{ch: make(chan *engine.Snapshot, 1)}
}

func (f *feed) publish(s *engine.Snapshot) {
	if s == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.latest = s
	// Replace an unread snapshot rather than block the producer
	select {
	case <-f.ch:
	default:
	}
	f.ch <- s
}

func (f *feed) Latest() *engine.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

// LocalDriver plays an in-process game. Gravity runs on a timer whose delay
// follows the engine's TickDelay for the current level.
type LocalDriver struct {
	mu     sync.Mutex
	engine *engine.GameEngine
	feed   *feed
}

// NewLocalDriver creates a driver for a new game with the given preset
func NewLocalDriver(config *engine.GameConfig) (*LocalDriver, error) {
	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}
	return &LocalDriver{engine: eng, feed: newFeed()}, nil
}

// Start publishes the initial state and starts gravity
func (d *LocalDriver) Start(ctx context.Context) (<-chan *engine.Snapshot, error) {
	d.mu.Lock()
	d.feed.publish(d.engine.Snapshot())
	d.mu.Unlock()

	go d.gravity(ctx)
	return d.feed.ch, nil
}

func (d *LocalDriver) gravity(ctx context.Context) {
	timer := time.NewTimer(d.tickDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.feed.close()
			return
		case <-timer.C:
			d.mu.Lock()
			if !d.engine.IsGameOver() {
				d.engine.Apply(engine.ActionTick)
				d.feed.publish(d.engine.Snapshot())
			}
			d.mu.Unlock()
			timer.Reset(d.tickDelay())
		}
	}
}

func (d *LocalDriver) tickDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.TickDelay()
}

// Act applies one action. Input after game over is ignored.
func (d *LocalDriver) Act(ctx context.Context, action engine.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine.IsGameOver() {
		return nil
	}
	d.engine.Apply(action)
	d.feed.publish(d.engine.Snapshot())
	return nil
}

// Reset starts a new game with the same preset
func (d *LocalDriver) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engine.Reset()
	d.feed.publish(d.engine.Snapshot())
	return nil
}

// Snapshot returns the current game view
func (d *LocalDriver) Snapshot() *engine.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Snapshot()
}
