// ABOUTME: The scan command: reads audio files into the library database
// ABOUTME: Optionally prunes tracks whose files have disappeared

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"playlist-generator/library"
	"playlist-generator/playlist"
)

var errNoRoots = errors.New("no directories to scan: pass them as arguments or set library.roots in the config")

func newScanCommand(a *app) *cobra.Command {
	var (
		workers int
		prune   bool
	)

	cmd := &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Read audio files into the track library",
		Long: "Walk the given directories, or the configured library roots, and store the\n" +
			"tags and length of every audio file found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Library.ScanWorkers
			}

			return runScan(cmd.Context(), a, args, workers, prune)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "files read at once (default from config)")
	cmd.Flags().BoolVar(&prune, "prune", false, "remove tracks whose files no longer exist")

	return cmd
}

func runScan(ctx context.Context, a *app, roots []string, workers int, prune bool) error {
	if len(roots) == 0 {
		roots = a.cfg.Library.Roots
	}

	if len(roots) == 0 {
		return errNoRoots
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openLibrary(ctx, a.logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close library")
		}
	}()

	opts := []library.ScannerOption{
		library.WithWorkers(workers),
		library.WithScanLogger(component(a.logger, "scanner")),
	}

	var bar *pb.ProgressBar

	if isTTY(os.Stderr) {
		// Called under the scanner's lock, so lazy creation is safe.
		opts = append(opts, library.WithProgress(func(done, total int) {
			if bar == nil {
				bar = pb.New(total)
				bar.SetWriter(os.Stderr)
				bar.SetTemplateString(`{{ string . "prefix" }} {{ bar . }} {{ counters . }} {{ percent . }} | ETA {{ rtime . "%s" }}`)
				bar.Set("prefix", "Scanning")
				bar.Start()
			}

			bar.SetCurrent(int64(done))
		}))
	}

	res, err := library.NewScanner(store, opts...).Scan(ctx, roots...)

	if bar != nil {
		bar.Finish()
	}

	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	colorSuccess.Printf("Scanned %d files: %d stored, %d skipped\n", res.Found, res.Added, res.Skipped)

	if prune {
		removed, err := pruneMissing(ctx, store)
		if err != nil {
			return err
		}

		colorInfo.Printf("Removed %d missing tracks\n", removed)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	colorInfo.Printf("Library now holds %d tracks\n", total)

	return nil
}

// pruneMissing deletes tracks whose file is gone
func pruneMissing(ctx context.Context, store *library.Store) (int, error) {
	var missing []string

	err := store.Query(ctx, nil, func(batch []playlist.Track) {
		for _, t := range batch {
			if _, err := os.Stat(t.URL); errors.Is(err, os.ErrNotExist) {
				missing = append(missing, t.URL)
			}
		}
	})
	if err != nil {
		return 0, fmt.Errorf("list library: %w", err)
	}

	if len(missing) == 0 {
		return 0, nil
	}

	if err := store.Delete(ctx, missing...); err != nil {
		return 0, err
	}

	return len(missing), nil
}
