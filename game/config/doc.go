// Package config loads and caches game presets.
//
// Presets are JSON files in a directory, one file per preset, addressed by
// their file name without the extension (the config ID):
//
//	{
//	  "name": "Classic",
//	  "description": "Standard 22x10 board",
//	  "rows": 22,
//	  "columns": 10,
//	  "seed": 42,
//	  "tick": {"base_ms": 500, "min_ms": 100, "step_ms": 50},
//	  "messages": {"welcome": "...", "game_over": "..."}
//	}
//
// The seed is optional; when present every game of the preset deals the same
// piece sequence. Loaded presets are validated with engine.ValidateGameConfig
// and cached until RefreshCache is called.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	preset, err := manager.LoadConfig("wide")
//	presets, err := manager.ListConfigs()
//
// When the directory holds no "classic" preset the first valid file becomes
// the default, and an empty directory falls back to engine.DefaultConfig.
package config
