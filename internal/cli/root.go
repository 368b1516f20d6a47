// Package cli provides the command-line interface for signalroom.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/signalroom/internal/config"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	jsonOutput bool

	// Global config, logger and store
	cfg         config.Config
	tunables    config.Tunables
	logger      *slog.Logger
	closeLog    func() error
	signalStore store.Store
)

// skipSetup lists commands that run without config or a store.
var skipSetup = map[string]bool{"version": true, "help": true, "completion": true}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "signalroom",
	Short: "Turn social comments into entity-level sentiment signals",
	Long: `Signalroom enriches stored comments: it finds which monitored entities a
comment talks about, scores its sentiment with a lexicon, a language model or
both, and writes weighted signals back to the store.

Names the catalog does not know are queued for operator review.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipSetup[cmd.Name()] {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		var err error
		tunables, err = config.LoadTunables(cfg.TunablesFile)
		if err != nil {
			return err
		}

		signalStore, err = openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Store, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if signalStore != nil {
			if err := signalStore.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and runs it with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(discoveredCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "signalroom %s\n", Version)
	},
}
