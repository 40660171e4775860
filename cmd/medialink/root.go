package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medialink/internal/config"
	"medialink/internal/logging"
	"medialink/internal/output"
)

// errUnprocessed makes the process exit non-zero after a run that left
// files or libraries unprocessed.
var errUnprocessed = errors.New("some files were not processed")

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	verbosity  int
	quiet      bool
	out        *output.Output
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "medialink",
		Short: "Mirror media downloads into a hardlinked library with clean names",
		Long: `medialink mirrors download directories into media library directories
using hardlinks, renaming movie and episode files to a canonical form.

Each library maps a source tree to a target tree. Every created link is
recorded in a per-library JSON tracking file, and files that already exist
at their destination are left alone, so runs can be repeated safely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbosity := g.verbosity
			if g.quiet {
				verbosity = 0
			}
			logging.Setup(verbosity)

			cfg := output.DefaultConfig()
			cfg.Verbose = g.verbosity > 0 && !g.quiet
			cfg.Quiet = g.quiet
			cfg.Writer = cmd.OutOrStdout()
			cfg.ErrWriter = cmd.ErrOrStderr()
			if cfg.Writer != os.Stdout {
				cfg.IsTTY = false
			}
			g.out = output.New(cfg)
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath(), "path to the configuration file (.json, .yaml or .toml)")
	root.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "increase verbosity (-v info, -vv debug, -vvv trace)")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "only print errors and summaries")

	root.AddCommand(
		newRunCmd(g),
		newLinkCmd(g),
		newStatusCmd(g),
		newNormalizeCmd(g),
		newVerifyCmd(g),
		newWatchCmd(g),
		newInitCmd(g),
	)
	return root
}

// loadConfig loads the configuration file and reports path problems as
// warnings. Libraries whose roots are unusable fail individually at run time.
func (g *globals) loadConfig() (*config.Configuration, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Type == config.FileNotFound {
			return nil, fmt.Errorf("%w (run 'medialink init' to create one)", err)
		}
		return nil, err
	}

	result := config.ValidateConfig(cfg)
	for _, e := range result.Errors {
		g.out.Error("Warning: %s", e.String())
	}
	for _, w := range result.Warnings {
		g.out.Info("Warning: %s", w.String())
	}
	return cfg, nil
}
