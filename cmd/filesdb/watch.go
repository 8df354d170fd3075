package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/pkg/adapters/lifecycle"
	"github.com/acmhack/filesdb/pkg/core"
)

var watchFlags storeFlags

var watchCmd = &cobra.Command{
	Use:   "watch [pattern]",
	Short: "Print document changes",
	Long:  `Watch an fs store and print one line per created or modified document. The pattern is a doublestar glob (default "**/*.json").`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		space := watchFlags.openSpace(ctx)
		err := watch(ctx, space, pattern)
		closeSpace(space)
		if err != nil {
			fatal("Failed to watch", err)
		}
	},
}

func watch(ctx context.Context, space core.Space, pattern string) error {
	watchable, ok := space.(core.Watchable)
	if !ok {
		return fmt.Errorf("adapter does not support watching")
	}

	src, err := lifecycle.WatchSource(ctx, watchable, pattern)
	if err != nil {
		return err
	}
	if err := src.Start(ctx); err != nil {
		return err
	}
	for e := range src.Events() {
		fmt.Println(e.String())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchFlags.register(watchCmd, false)
}
