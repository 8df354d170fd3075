package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/internal/platform"
)

var (
	verbose    bool
	configPath string

	// fileConfig is filesdb.yaml, loaded before any command runs. It may be nil.
	fileConfig *platform.FileConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filesdb",
	Short: "A JSON document store with optimistic concurrency",
	Long: `filesdb stores JSON documents with content-hash version tokens.
Writes can be made conditional on the token last read; a stale token is
rejected with a conflict instead of overwriting someone else's change.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		if configPath != "" {
			fileConfig, err = platform.LoadConfig(configPath)
		} else if wd, wdErr := os.Getwd(); wdErr == nil {
			fileConfig, err = platform.FindConfig(wd)
		}
		if err != nil {
			fatal("Failed to load config", err)
		}

		level := slog.LevelInfo
		if fileConfig != nil {
			level = fileConfig.Level()
		}
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: filesdb.yaml found upwards from the working directory)")
}
