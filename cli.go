// ABOUTME: The generate command: solves a preset against the library or playlist files
// ABOUTME: Handles progress display, result output, and signal-driven abort for command-line usage

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"playlist-generator/config"
	"playlist-generator/constraint"
	"playlist-generator/domain"
	"playlist-generator/playlist"
	"playlist-generator/pool"
	"playlist-generator/preset"
	"playlist-generator/solver"
	"playlist-generator/tui"
)

// generateOptions contains the generate command's flags
type generateOptions struct {
	preset  string
	output  string
	from    []string
	seed    uint64
	visual  bool
	explain bool
}

func newGenerateCommand(a *app) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate --preset <name|file.xml>",
		Short: "Generate a playlist from a preset",
		Long: "Generate a playlist that satisfies the constraints of a preset. Candidate tracks\n" +
			"come from the library database, or from the playlist files given with --from.\n" +
			"Press Ctrl+C to abort; an aborted generation changes nothing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.seed = a.cfg.Solver.Seed
			}

			return runGenerate(cmd.Context(), a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.preset, "preset", "p", "", "preset name in the preset directory, or path to a preset XML file")
	flags.StringVarP(&opts.output, "output", "o", "", "write the playlist to this M3U8 file")
	flags.StringSliceVar(&opts.from, "from", nil, "use tracks from these playlist files instead of the library")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed for a reproducible result (0 = random)")
	flags.BoolVar(&opts.visual, "visual", false, "watch progress and review the result in the terminal UI")
	flags.BoolVar(&opts.explain, "explain", false, "show how well each constraint is met")

	_ = cmd.MarkFlagRequired("preset")

	return cmd
}

// solverConfig maps the file config onto solver parameters
func solverConfig(c config.SolverConfig, seed uint64) solver.Config {
	cfg := solver.DefaultConfig()
	cfg.PopulationSize = c.PopulationSize
	cfg.SatisfactionThreshold = c.SatisfactionThreshold
	cfg.MaxGenerations = c.MaxGenerations
	cfg.DefaultPlaylistSize = c.DefaultPlaylistSize
	cfg.MutationFraction = c.MutationFraction
	cfg.Seed = seed

	return cfg
}

// sources opens the collections candidate tracks come from. The returned
// close function is never nil.
func (a *app) sources(ctx context.Context, from []string, logger zerolog.Logger) ([]domain.Collection, constraint.Resolver, func(), error) {
	if len(from) > 0 {
		collections, idx, err := playlistCollections(from, component(logger, "playlist"))
		if err != nil {
			return nil, nil, func() {}, err
		}

		return collections, idx, func() {}, nil
	}

	lib, err := a.openLibrary(ctx, logger)
	if err != nil {
		return nil, nil, func() {}, err
	}

	closeLib := func() {
		if err := lib.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close library")
		}
	}

	return []domain.Collection{lib}, lib, closeLib, nil
}

func runGenerate(ctx context.Context, a *app, opts generateOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The terminal UI owns the screen, so logs only go to the debug file.
	logger := a.logger
	if opts.visual {
		logger = a.fileLog
	}

	collections, resolver, closeSources, err := a.sources(ctx, opts.from, logger)
	if err != nil {
		return err
	}
	defer closeSources()

	store, reg, err := a.openPresets(resolver, logger)
	if err != nil {
		return err
	}

	p, err := loadPreset(store, reg, opts.preset, component(logger, "presets"))
	if err != nil {
		return err
	}

	var notifier domain.Notifier = consoleNotifier{out: os.Stderr, logger: logger}
	if opts.visual {
		notifier = domain.NewLogNotifier(logger)
	}

	loader := domain.NewLoader(collections,
		domain.WithNotifier(notifier),
		domain.WithLogger(component(logger, "domain")),
		domain.WithShuffleSeed(opts.seed),
	)

	queue := pool.NewWorkerPool(1, 1)
	defer queue.Close()

	updates := make(chan solver.Update, 16)

	env := preset.Env{
		Loader:        loader,
		Queue:         queue,
		Notifier:      notifier,
		Logger:        component(logger, "generator"),
		SolverOptions: []solver.Option{solver.WithConfig(solverConfig(a.cfg.Solver, opts.seed))},
		Updates:       updates,
		OnLock: func(locked bool) {
			logger.Debug().Bool("locked", locked).Msg("constraint tree lock changed")
		},
	}

	var sink preset.Sink
	if opts.output != "" {
		sink = preset.M3USink{Path: opts.output}
	}

	if opts.visual {
		return runVisual(ctx, p, env, sink, opts.explain)
	}

	env.Sink = sink

	return runCLI(ctx, p, env, opts)
}

// runCLI generates with progress on stderr and the playlist on stdout
func runCLI(ctx context.Context, p *preset.Preset, env preset.Env, opts generateOptions) error {
	colorHeader.Fprintf(os.Stderr, "Generating %q... (press Ctrl+C to abort)\n", p.Title)

	reporter := newProgressReporter(os.Stderr, isTTY(os.Stderr))
	lastUpdate := make(chan solver.Update, 1)

	go func() { lastUpdate <- reporter.run(env.Updates) }()

	res, err := p.Generate(ctx, env)
	if errors.Is(err, preset.ErrBusy) {
		return err
	}

	last := <-lastUpdate

	if errors.Is(err, preset.ErrAborted) {
		colorWarning.Fprintln(os.Stderr, "\nGeneration aborted, no playlist was written.")
		return err
	}

	if err != nil {
		return err
	}

	if last.GenPerSec > 0 {
		colorInfo.Fprintf(os.Stderr, "Last generation rate: %.1f gen/s\n", last.GenPerSec)
	}

	fmt.Println()

	if err := writeTracks(os.Stdout, res.Tracks); err != nil {
		return err
	}

	fmt.Println()

	if res.Satisfied {
		colorSuccess.Println(summary(res))
	} else {
		colorWarning.Println(summary(res) + " (constraints not fully met)")
	}

	if opts.explain {
		fmt.Println()

		if err := constraint.WriteAudit(os.Stdout, constraint.Audit(p.Root(), res.Tracks)); err != nil {
			return err
		}
	}

	if opts.output != "" {
		colorSuccess.Printf("Wrote playlist to %s\n", opts.output)
	}

	return nil
}

// runVisual shows the generation in the terminal UI. The playlist is only
// written when the user saves it there.
func runVisual(ctx context.Context, p *preset.Preset, env preset.Env, sink preset.Sink, explain bool) error {
	uiOpts := tui.Options{
		Title:   p.Title,
		Updates: env.Updates,
		Generate: func(ctx context.Context) (preset.Result, error) {
			return p.Generate(ctx, env)
		},
	}

	if explain {
		uiOpts.Explain = func(tracks []playlist.Track) []constraint.AuditEntry {
			return constraint.Audit(p.Root(), tracks)
		}
	}

	if sink != nil {
		uiOpts.Save = sink.Replace
	}

	out, err := tui.Run(ctx, uiOpts)
	if err != nil {
		return err
	}

	switch {
	case out.Err != nil:
		return out.Err
	case out.Aborted:
		colorWarning.Println("Generation aborted, no playlist was written.")
	case out.Saved:
		colorSuccess.Printf("Saved %d tracks\n", len(out.Tracks))
	default:
		colorInfo.Println(summary(out.Result) + " (not saved)")
	}

	return nil
}
