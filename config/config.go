// ABOUTME: Configuration management for solver, library, preset and log settings
// ABOUTME: Handles loading/saving TOML config files with fallback to defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the whole configuration file.
type Config struct {
	Solver  SolverConfig  `toml:"solver"`
	Library LibraryConfig `toml:"library"`
	Presets PresetsConfig `toml:"presets"`
	Log     LogConfig     `toml:"log"`
}

// SolverConfig holds the tunable genetic algorithm parameters
type SolverConfig struct {
	PopulationSize        int     `toml:"population_size"`
	SatisfactionThreshold float64 `toml:"satisfaction_threshold"`
	MaxGenerations        int     `toml:"max_generations"`
	DefaultPlaylistSize   int     `toml:"default_playlist_size"`
	MutationFraction      float64 `toml:"mutation_fraction"`
	Seed                  uint64  `toml:"seed"` // 0 = random
}

// LibraryConfig locates the track database and the music to scan into it.
type LibraryConfig struct {
	Database    string   `toml:"database"`
	Roots       []string `toml:"roots"`
	BatchSize   int      `toml:"batch_size"`
	ScanWorkers int      `toml:"scan_workers"`
}

// PresetsConfig locates saved presets.
type PresetsConfig struct {
	Directory string `toml:"directory"`
}

// LogConfig sets the console log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// GetConfigPath returns the default config file path
// First tries current directory, then falls back to ~/.config/playlist-generator/config.toml
func GetConfigPath() string {
	if _, err := os.Stat("./playlist-generator.toml"); err == nil {
		return "./playlist-generator.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./playlist-generator.toml"
	}

	return filepath.Join(home, ".config", "playlist-generator", "config.toml")
}

// dataDir is where the database and presets live by default.
func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "playlist-generator")
	}

	return "."
}

// LoadConfig loads configuration from a TOML file
// A missing file yields defaults; keys absent from the file keep their defaults
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}

		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding over the defaults leaves unset keys alone
	config := DefaultConfig()
	if err := toml.Unmarshal(data, &config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a TOML file
func SaveConfig(path string, config Config) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	config.Solver = roundSolverPrecision(config.Solver)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", cerr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	dir := dataDir()

	return Config{
		Solver: SolverConfig{
			PopulationSize:        40,
			SatisfactionThreshold: 0.95,
			MaxGenerations:        100,
			DefaultPlaylistSize:   15,
			MutationFraction:      0.35,
		},
		Library: LibraryConfig{
			Database:    filepath.Join(dir, "library.db"),
			BatchSize:   500,
			ScanWorkers: 8,
		},
		Presets: PresetsConfig{
			Directory: filepath.Join(dir, "presets"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// roundSolverPrecision rounds the float fields to 2 decimal places
func roundSolverPrecision(c SolverConfig) SolverConfig {
	round := func(x float64) float64 {
		return float64(int(x*100+0.5)) / 100
	}

	c.SatisfactionThreshold = round(c.SatisfactionThreshold)
	c.MutationFraction = round(c.MutationFraction)

	return c
}
