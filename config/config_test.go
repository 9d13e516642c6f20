// ABOUTME: Tests for configuration load/save functionality
// ABOUTME: Validates TOML parsing and default config fallback behavior

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Solver.PopulationSize != 40 {
		t.Errorf("Expected PopulationSize 40, got %d", cfg.Solver.PopulationSize)
	}

	if cfg.Solver.SatisfactionThreshold != 0.95 {
		t.Errorf("Expected SatisfactionThreshold 0.95, got %.2f", cfg.Solver.SatisfactionThreshold)
	}

	if cfg.Library.BatchSize != 500 {
		t.Errorf("Expected BatchSize 500, got %d", cfg.Library.BatchSize)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Solver.Seed = 1234
	cfg.Solver.MutationFraction = 0.333333
	cfg.Library.Roots = []string{"/music", "/more music"}
	cfg.Log.Level = "debug"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	cfg.Solver.MutationFraction = 0.33
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	if err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}

	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Error("Expected defaults for a missing file")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(Config) bool
	}{
		{
			name:  "only seed",
			data:  "[solver]\nseed = 99\n",
			check: func(c Config) bool { return c.Solver.Seed == 99 && c.Solver.PopulationSize == 40 },
		},
		{
			name:  "only log level",
			data:  "[log]\nlevel = \"warn\"\n",
			check: func(c Config) bool { return c.Log.Level == "warn" && c.Solver.MaxGenerations == 100 },
		},
		{
			name:  "library roots",
			data:  "[library]\nroots = [\"/a\", \"/b\"]\n",
			check: func(c Config) bool { return len(c.Library.Roots) == 2 && c.Library.ScanWorkers == 8 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}

			if !tt.check(cfg) {
				t.Errorf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[solver\nbroken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}
