package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medialink/internal/config"
	"medialink/internal/mirror"
	"medialink/internal/normalizer"
	"medialink/internal/orchestrator"
	"medialink/internal/tracking"
)

func newRunCmd(g *globals) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run [library...]",
		Short: "Mirror all or the named libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			o := orchestrator.NewOrchestrator(cfg, orchestrator.Options{
				DryRun:   dryRun,
				Reporter: g.out,
			})

			g.out.StartProgress()
			summary, err := o.Run(args)
			g.out.EndProgress()
			if err != nil {
				return err
			}
			return g.report(summary)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be linked without touching the target or tracking file")
	return cmd
}

func newLinkCmd(g *globals) *cobra.Command {
	var (
		source, target, trackingFile string
		dryRun                       bool
	)

	cmd := &cobra.Command{
		Use:   "link --source DIR --target DIR",
		Short: "Mirror one directory without a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfiguration()
			cfg.Libraries = []config.Library{{
				Name:         filepath.Base(filepath.Clean(target)),
				Source:       source,
				Target:       target,
				TrackingFile: trackingFile,
			}}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}

			o := orchestrator.NewOrchestrator(cfg, orchestrator.Options{
				DryRun:   dryRun,
				Reporter: g.out,
			})
			g.out.StartProgress()
			summary, err := o.Run(nil)
			g.out.EndProgress()
			if err != nil {
				return err
			}
			return g.report(summary)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source directory")
	cmd.Flags().StringVar(&target, "target", "", "target directory")
	cmd.Flags().StringVar(&trackingFile, "tracking", "", "tracking file (default: hardlinks/hardlinked_<target name>.json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be linked without touching the target or tracking file")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// report prints per-library results and returns errUnprocessed if anything failed.
func (g *globals) report(summary *orchestrator.Summary) error {
	for _, r := range summary.Results {
		if r.Error != nil {
			g.out.Error("Error: library %s: %v", r.Library.Name, r.Error)
			continue
		}
		g.out.Summary(r.Library.Name, r.Stats, summary.DryRun)
	}
	if len(summary.Results) > 1 {
		g.out.Print("%s", summary.PrintSummary())
	}
	if summary.HasErrors() {
		return errUnprocessed
	}
	return nil
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status [library...]",
		Short: "Preview what a run would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			result, err := orchestrator.NewOrchestrator(cfg, orchestrator.Options{}).Status(args)
			if err != nil {
				return err
			}

			failed := false
			for _, lib := range result.Libraries {
				if lib.Error != nil {
					failed = true
					g.out.Error("Error: library %s: %v", lib.Library.Name, lib.Error)
					continue
				}
				g.out.Print("Library %s: %d to link, %d already linked, %d skipped, %d failing",
					lib.Library.Name,
					len(lib.ByOutcome[mirror.Linked]),
					len(lib.ByOutcome[mirror.AlreadyLinked]),
					len(lib.ByOutcome[mirror.Skipped]),
					len(lib.ByOutcome[mirror.Failed]))
				for _, link := range lib.ByOutcome[mirror.Linked] {
					g.out.Print("  %s -> %s (%s)", link.Source, link.Target, link.Rule)
				}
				for _, link := range lib.ByOutcome[mirror.Failed] {
					g.out.Print("  failing: %s (%v)", link.Source, link.Err)
				}
				for _, link := range lib.ByOutcome[mirror.AlreadyLinked] {
					g.out.Verbose("  already linked: %s", link.Target)
				}
			}
			g.out.Print("%d files pending", result.TotalPending)
			if failed {
				return errUnprocessed
			}
			return nil
		},
	}
}

func newNormalizeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <filename>...",
		Short: "Print the canonical name for each filename",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				result := normalizer.Normalize(name)
				switch {
				case result.Skip:
					g.out.Print("%s: skipped (%s)", name, result.Rule)
				case !result.Matched():
					g.out.Print("%s: unchanged (no rule matched)", name)
				default:
					g.out.Print("%s -> %s (%s)", name, result.Name, result.Rule)
				}
			}
			return nil
		},
	}
}

func newVerifyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [library...]",
		Short: "Check recorded links against the filesystem",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			results, err := orchestrator.NewOrchestrator(cfg, orchestrator.Options{}).Verify(args)
			if err != nil {
				return err
			}

			failed := false
			for _, r := range results {
				if r.Error != nil {
					failed = true
					g.out.Error("Error: library %s: %v", r.Library.Name, r.Error)
					continue
				}
				g.out.Print("Library %s: %d records, %d ok, %d problems",
					r.Library.Name, len(r.Findings), r.Counts[tracking.StatusOK], r.Problems())

				statuses := make([]string, 0, len(r.Counts))
				for status := range r.Counts {
					statuses = append(statuses, string(status))
				}
				sort.Strings(statuses)
				for _, s := range statuses {
					g.out.Verbose("  %s: %d", s, r.Counts[tracking.Status(s)])
				}

				for _, f := range r.Findings {
					if f.Status == tracking.StatusOK {
						continue
					}
					failed = true
					if f.Err != nil {
						g.out.Print("  %s: %s -> %s (%v)", f.Status, f.Record.SourcePath, f.Record.TargetPath, f.Err)
					} else {
						g.out.Print("  %s: %s -> %s", f.Status, f.Record.SourcePath, f.Record.TargetPath)
					}
				}
			}
			if failed {
				return errUnprocessed
			}
			return nil
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [library...]",
		Short: "Mirror, then re-run whenever a source changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			o := orchestrator.NewOrchestrator(cfg, orchestrator.Options{})
			summary, err := o.Watch(ctx, args, func(r orchestrator.Result) {
				if r.Error != nil {
					g.out.Error("Error: library %s: %v", r.Library.Name, r.Error)
					return
				}
				g.out.Summary(r.Library.Name, r.Stats, false)
			})
			if err != nil {
				return err
			}
			g.out.Print("Watch stopped after %s: %d re-runs, %d failed, %d events ignored",
				summary.Duration.Round(time.Millisecond), summary.Runs, summary.Failures, summary.EventsIgnored)
			return nil
		},
	}
}

func newInitCmd(g *globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(g.configPath); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", g.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Save(config.DefaultConfiguration(), g.configPath); err != nil {
				return err
			}
			g.out.Print("Wrote default configuration to %s", g.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}
