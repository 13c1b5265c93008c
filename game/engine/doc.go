// Package engine provides the core game logic for the falling-block puzzle.
//
// The engine package implements the game mechanics including:
//   - The occupancy grid with two hidden spawn rows above the visible field
//   - Seven tetromino kinds with table-driven rotation data
//   - Collision checks, line clearing, scoring and leveling
//   - Hold, ghost projection and a non-repeating seeded piece queue
//   - Game snapshots for clients and persistence
//   - Preset validation and tick timing
//
// Core Types:
//
// GameState is the single-threaded simulation. It owns the grid, the current
// piece, the hold slot and the queue, and exposes seven mutators
// (MoveBlockLeft, MoveBlockRight, RotateBlockCW, RotateBlockCCW,
// MoveBlockDown, HoldBlock, DropBlock) plus read-only views. Illegal moves are
// silently rejected; the only terminal condition is a blocked spawn.
//
// The Engine interface, implemented by GameEngine, wraps a GameState with a
// GameConfig preset, an action history that survives resets, per-kind draw
// statistics and Snapshot/Restore.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	outcome := gameEngine.Apply(engine.ActionDrop)
//	if outcome.LinesCleared > 0 {
//		fmt.Println("cleared", outcome.LinesCleared)
//	}
//	time.Sleep(gameEngine.TickDelay())
//	gameEngine.Apply(engine.ActionTick)
//
// Game Rules:
//
// Locking a piece clears every full row. Clearing 1, 2, 3 or 4 rows at once
// scores 100, 300, 500 or 800 points multiplied by the level plus one, and the
// level is the score divided by 1000. The engine never schedules itself;
// drivers apply ActionTick at the interval TickDelay reports.
package engine
