package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb"
	"github.com/acmhack/filesdb/pkg/adapters/mcp"
)

var (
	serveFlags     storeFlags
	serveTransport string
	serveAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a store as MCP tools",
	Long: `Expose files.readJson and files.writeJson over the Model Context Protocol.
The stdio transport speaks on stdin/stdout (logs go to stderr); the sse
transport listens on --addr.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport := serveTransport
		addr := serveAddr
		if fileConfig != nil {
			if !cmd.Flags().Changed("transport") && fileConfig.Transport != "" {
				transport = fileConfig.Transport
			}
			if !cmd.Flags().Changed("addr") && fileConfig.Addr != "" {
				addr = fileConfig.Addr
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		space := serveFlags.openSpace(ctx)

		srv := mcp.NewServer(space,
			mcp.WithServerLogger(slog.Default()),
			mcp.WithServerVersion(filesdb.Version),
		)

		var err error
		switch transport {
		case "stdio":
			slog.Info("serving mcp over stdio")
			err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		case "sse":
			err = srv.ServeSSE(ctx, addr)
		default:
			err = fmt.Errorf("unknown transport: %s", transport)
		}
		closeSpace(space)
		if err != nil {
			fatal("Server stopped", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.register(serveCmd, false)
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "MCP transport: stdio or sse")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address for the sse transport")
}
