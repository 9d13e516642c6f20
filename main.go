// ABOUTME: Entry point for playlist-generator application
// ABOUTME: Builds the command tree and handles profiling and logging flags

// Package main provides the entry point for playlist-generator, which builds
// playlists that satisfy a tree of constraints using a genetic algorithm.
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	a := &app{}
	defer a.teardown()

	if err := newRootCommand(a).Execute(); err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)

		return 1
	}

	return 0
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "playlist-generator",
		Short:         "Generate playlists that satisfy a set of constraints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags().Changed("log-level"))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./playlist-generator.toml or ~/.config/playlist-generator/config.toml)")
	flags.StringVar(&a.cpuprofile, "cpuprofile", "", "write cpu profile to file")
	flags.StringVar(&a.memprofile, "memprofile", "", "write memory profile to file")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging to "+debugLogFile)
	flags.StringVar(&a.logLevel, "log-level", "info", "console log level (debug, info, warn, error)")

	cmd.AddCommand(
		newScanCommand(a),
		newGenerateCommand(a),
		newKindsCommand(a),
		newPresetsCommand(a),
	)

	return cmd
}

// startCPUProfile starts CPU profiling, returns cleanup function
func startCPUProfile(filename string) (func(), error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()

		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close CPU profile: %v\n", err)
		}
	}, nil
}

// writeMemoryProfile writes memory profile to file
func writeMemoryProfile(filename string, logger zerolog.Logger) {
	f, err := os.Create(filename)
	if err != nil {
		logger.Error().Err(err).Msg("could not create memory profile")

		return
	}

	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close memory profile")
		}
	}()

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.Error().Err(err).Msg("could not write memory profile")
	}
}
