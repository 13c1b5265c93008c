// Command validate provides a small CLI that validates game preset JSON
// files in a configs directory. It checks:
//   - JSON structure, with unknown fields rejected
//   - The engine's preset rules (name, description, dimensions, gravity timings)
//   - Required message keys
//   - Playability: a seeded bot game must place pieces without topping out at once
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/strategy"
)

// smokePieces is how many pieces the playability check places
const smokePieces = 20

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single preset file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if err := engine.ValidateGameConfig(&config); err != nil {
		result.fail("%v", err)
	}

	if config.Messages.Welcome == "" {
		result.fail("Missing required message: welcome")
	}
	if config.Messages.GameOver == "" {
		result.fail("Missing required message: game_over")
	}

	if !result.Valid {
		return result
	}

	playability := validatePlayability(&config)
	if !playability.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, playability.Errors...)

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d (%d visible rows)", config.Rows, config.Columns, config.Rows-engine.HiddenRows))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Gravity: %s down to %s", config.Tick.TickDelay(0), config.Tick.TickDelay(1<<20)))
		if config.Seed != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Seed: %d", *config.Seed))
		}
	}

	return result
}

// validatePlayability plays a seeded bot game on the preset and fails when
// the game ends before smokePieces pieces.
func validatePlayability(config *engine.GameConfig) ValidationResult {
	result := ValidationResult{Valid: true}

	seeded := *config
	if seeded.Seed == nil {
		seed := uint64(1)
		seeded.Seed = &seed
	}

	eng, err := engine.NewEngine(&seeded)
	if err != nil {
		result.fail("Cannot start a game: %v", err)
		return result
	}

	placed := 0
	for placed < smokePieces && !eng.IsGameOver() {
		best, err := strategy.Best(eng.GetState(), strategy.DefaultWeights)
		if err != nil {
			break
		}
		eng.BulkApply(best.Actions)
		placed++
	}

	if placed < smokePieces {
		result.fail("Unplayable: the bot topped out after %d pieces", placed)
		return result
	}
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Bot placed %d pieces, cleared %d lines", placed, eng.GetState().LinesCleared()))
	return result
}

// validateDir validates every *.json file in dir and writes a report. It
// reports whether all files are valid.
func validateDir(w io.Writer, dir string) (bool, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return false, fmt.Errorf("finding config files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no config files in %s", dir)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(w, "  ❌ "+err)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid, nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate game preset files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "../configs", Usage: "Directory containing game presets", Sources: cli.EnvVars("CONFIG_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			valid, err := validateDir(cmd.Root().Writer, cmd.String("dir"))
			if err != nil {
				return err
			}
			if !valid {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// main scans the presets directory and exits with non-zero status if any
// preset is invalid.
func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
