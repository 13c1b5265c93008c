// Command analyze prints quick, human-readable heuristics about the presets
// in the configs directory: the gravity schedule, the piece distribution of
// the seeded queue and how a placement bot fares over a few seeded games.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/kamstrup/intmap"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/tetris-engine/game/config"
	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/strategy"
)

// QueueReport describes a run of queue draws
type QueueReport struct {
	Draws   int
	Counts  map[engine.Kind]int
	Repeats int // consecutive equal kinds, always zero for a healthy queue
	// MaxDeviation is the largest relative distance of a kind's share from 1/7
	MaxDeviation float64
}

// AnalyzeQueue draws from a seeded queue and tallies the kinds
func AnalyzeQueue(columns int, seed uint64, draws int) QueueReport {
	q := engine.NewPieceQueue(columns, seed)
	counts := intmap.New[engine.Kind, int](len(engine.AllKinds))

	report := QueueReport{Draws: draws}
	prev := engine.KindNone
	for i := 0; i < draws; i++ {
		kind := q.GetAndUpdate().Kind
		if kind == prev {
			report.Repeats++
		}
		prev = kind
		n, _ := counts.Get(kind)
		counts.Put(kind, n+1)
	}

	report.Counts = make(map[engine.Kind]int, counts.Len())
	expected := float64(draws) / float64(len(engine.AllKinds))
	for _, kind := range engine.AllKinds {
		n, _ := counts.Get(kind)
		report.Counts[kind] = n
		if expected > 0 {
			report.MaxDeviation = math.Max(report.MaxDeviation, math.Abs(float64(n)-expected)/expected)
		}
	}
	return report
}

// GameSummary is the outcome of one bot game
type GameSummary struct {
	Seed     uint64
	Pieces   int
	Lines    int
	Score    int
	Level    int
	GameOver bool
	Kinds    map[engine.Kind]int
}

// SimulateGames plays seeded games with the placement strategy. Each game
// stops at game over or after maxPieces pieces.
func SimulateGames(cfg *engine.GameConfig, games, maxPieces int, baseSeed uint64) ([]GameSummary, error) {
	summaries := make([]GameSummary, 0, games)
	for i := 0; i < games; i++ {
		seed := baseSeed + uint64(i)
		gameConfig := *cfg
		gameConfig.Seed = &seed

		eng, err := engine.NewEngine(&gameConfig)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", i+1, err)
		}

		pieces := 0
		for pieces < maxPieces && !eng.IsGameOver() {
			best, err := strategy.Best(eng.GetState(), strategy.DefaultWeights)
			if err != nil {
				break
			}
			eng.BulkApply(best.Actions)
			pieces++
		}

		summaries = append(summaries, GameSummary{
			Seed:     seed,
			Pieces:   pieces,
			Lines:    eng.GetState().LinesCleared(),
			Score:    eng.GetScore(),
			Level:    eng.GetLevel(),
			GameOver: eng.IsGameOver(),
			Kinds:    eng.KindStats(),
		})
	}
	return summaries, nil
}

// TickSchedule lists the gravity delay per level until it bottoms out
func TickSchedule(tick engine.TickConfig) []string {
	var schedule []string
	for level := 0; ; level++ {
		delay := tick.TickDelay(level)
		schedule = append(schedule, fmt.Sprintf("L%d=%s", level, delay))
		if delay.Milliseconds() <= int64(tick.MinMS) || tick.StepMS == 0 || level >= 50 {
			return schedule
		}
	}
}

// analyzeConfig writes the report for one preset
func analyzeConfig(w io.Writer, id string, cfg *engine.GameConfig, opts options) error {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", id)
	fmt.Fprintf(w, "Name: %s\n", cfg.Name)
	fmt.Fprintf(w, "Grid: %d x %d (%d hidden rows)\n", cfg.Columns, cfg.Rows, engine.HiddenRows)
	if cfg.Seed != nil {
		fmt.Fprintf(w, "Seed: %d (deterministic queue)\n", *cfg.Seed)
	}
	fmt.Fprintf(w, "Gravity: %v\n", TickSchedule(cfg.Tick))

	queue := AnalyzeQueue(cfg.Columns, opts.seed, opts.draws)
	fmt.Fprintf(w, "Queue over %d draws:", queue.Draws)
	for _, kind := range engine.AllKinds {
		fmt.Fprintf(w, " %s=%d", kind, queue.Counts[kind])
	}
	fmt.Fprintf(w, "\n  max deviation from uniform: %.1f%%\n", queue.MaxDeviation*100)
	if queue.Repeats > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d consecutive repeats\n", queue.Repeats)
	} else {
		fmt.Fprintf(w, "✅ No kind was dealt twice in a row\n")
	}

	games, err := SimulateGames(cfg, opts.games, opts.maxPieces, opts.seed)
	if err != nil {
		return err
	}
	totalLines, bestScore := 0, 0
	for _, g := range games {
		status := "stopped"
		if g.GameOver {
			status = "game over"
		}
		fmt.Fprintf(w, "  seed %d: %d pieces, %d lines, score %d, level %d (%s)\n",
			g.Seed, g.Pieces, g.Lines, g.Score, g.Level, status)
		totalLines += g.Lines
		bestScore = max(bestScore, g.Score)
	}
	if len(games) > 0 {
		fmt.Fprintf(w, "Bot: %.1f lines per game, best score %d\n", float64(totalLines)/float64(len(games)), bestScore)
	}
	return nil
}

type options struct {
	seed      uint64
	draws     int
	games     int
	maxPieces int
}

func run(ctx context.Context, cmd *cli.Command) error {
	configs, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return err
	}

	opts := options{
		seed:      cmd.Uint64("seed"),
		draws:     cmd.Int("draws"),
		games:     cmd.Int("games"),
		maxPieces: cmd.Int("max-pieces"),
	}

	ids := cmd.StringSlice("preset")
	if len(ids) == 0 {
		infos, err := configs.ListConfigs()
		if err != nil {
			return err
		}
		for _, info := range infos {
			ids = append(ids, info.ConfigID)
		}
	}

	for _, id := range ids {
		cfg, err := configs.LoadConfig(id)
		if err != nil {
			fmt.Fprintf(cmd.Root().Writer, "Error loading %s: %v\n", id, err)
			continue
		}
		if err := analyzeConfig(cmd.Root().Writer, id, cfg, opts); err != nil {
			return err
		}
	}
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "summarize presets with seeded queue and bot simulations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game presets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringSliceFlag{Name: "preset", Usage: "Preset to analyze; repeat for several (all when omitted)"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "Base seed for the queue and the bot games"},
			&cli.IntFlag{Name: "draws", Value: 70_000, Usage: "Queue draws for the distribution check"},
			&cli.IntFlag{Name: "games", Value: 3, Usage: "Bot games per preset"},
			&cli.IntFlag{Name: "max-pieces", Value: 500, Usage: "Piece limit per bot game"},
		},
		Action: run,
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
