// ABOUTME: The kinds and presets commands: list constraint kinds and manage saved presets
// ABOUTME: Presets can be listed, shown as a tree or XML, imported, deleted and watched

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"playlist-generator/constraint"
	"playlist-generator/preset"
)

func newKindsCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the constraint kinds a preset can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeKinds(cmd.OutOrStdout(), constraint.NewRegistry(nil))
		},
	}
}

// writeKinds prints the visible kinds with their descriptions
func writeKinds(w io.Writer, reg *constraint.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, kind := range reg.Kinds() {
		e, _ := reg.Lookup(kind)
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", kind, e.Title, e.Description); err != nil {
			return fmt.Errorf("failed to write kind %s: %w", kind, err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}

func newPresetsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved presets",
	}

	var asXML bool

	show := &cobra.Command{
		Use:   "show <name|file.xml>",
		Short: "Print a preset's constraint tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, err := a.openPresets(nil, a.logger)
			if err != nil {
				return err
			}

			p, err := loadPreset(store, reg, args[0], a.logger)
			if err != nil {
				return err
			}

			if asXML {
				return p.Encode(cmd.OutOrStdout())
			}

			return writeTree(cmd.OutOrStdout(), p)
		},
	}
	show.Flags().BoolVar(&asXML, "xml", false, "print the stored XML instead of a tree")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved presets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, _, err := a.openPresets(nil, a.logger)
				if err != nil {
					return err
				}

				return writePresetList(cmd.OutOrStdout(), store)
			},
		},
		show,
		&cobra.Command{
			Use:   "import <file.xml> [name]",
			Short: "Copy a preset file into the preset directory",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, reg, err := a.openPresets(nil, a.logger)
				if err != nil {
					return err
				}

				p, err := preset.Load(args[0], reg, a.logger)
				if err != nil {
					return err
				}

				name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				if len(args) == 2 {
					name = args[1]
				}

				if err := store.Save(name, p); err != nil {
					return err
				}

				colorSuccess.Fprintf(cmd.OutOrStdout(), "Imported %q as %s\n", p.Title, name)

				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a saved preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, _, err := a.openPresets(nil, a.logger)
				if err != nil {
					return err
				}

				if err := store.Delete(args[0]); err != nil {
					return err
				}

				colorSuccess.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])

				return nil
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Report presets as they change on disk",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, _, err := a.openPresets(nil, a.logger)
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				colorHeader.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", store.Dir())

				return store.Watch(ctx, func(e preset.Event) {
					writeEvent(cmd.OutOrStdout(), e)
				})
			},
		},
	)

	return cmd
}

// writePresetList prints each saved preset with its title
func writePresetList(w io.Writer, store *preset.Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		colorInfo.Fprintf(w, "No presets in %s\n", store.Dir())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, name := range names {
		title := ""

		p, err := store.Get(name)
		if err != nil {
			title = "(unreadable: " + err.Error() + ")"
		} else {
			title = p.Title
		}

		if _, err := fmt.Fprintf(tw, "%s\t%s\n", name, title); err != nil {
			return fmt.Errorf("failed to write preset %s: %w", name, err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}

// writeTree prints the constraint tree indented by depth
func writeTree(w io.Writer, p *preset.Preset) error {
	if _, err := fmt.Fprintln(w, p.Title); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}

	var werr error

	p.Root().Walk(func(n constraint.Node, depth int) {
		if werr != nil {
			return
		}

		_, werr = fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), n.Name())
	})

	if werr != nil {
		return fmt.Errorf("failed to write tree: %w", werr)
	}

	return nil
}

func writeEvent(w io.Writer, e preset.Event) {
	switch {
	case e.Removed:
		colorWarning.Fprintf(w, "%s removed\n", e.Name)
	case e.Err != nil:
		colorError.Fprintf(w, "%s unreadable: %v\n", e.Name, e.Err)
	default:
		colorSuccess.Fprintf(w, "%s changed: %q\n", e.Name, e.Preset.Title)
	}
}
