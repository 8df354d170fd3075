package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/acmhack/filesdb/internal/platform"
	"github.com/acmhack/filesdb/pkg/core"
)

// storeFlags selects the space a command operates on.
type storeFlags struct {
	adapter   string
	path      string
	systemDir string
	readOnly  bool
	server    string
	mcpConfig string
}

func (f *storeFlags) register(cmd *cobra.Command, remote bool) {
	cmd.Flags().StringVar(&f.adapter, "adapter", "", "Storage adapter: fs, badger or memory")
	cmd.Flags().StringVar(&f.path, "path", "", "Store directory (default: config path or working directory)")
	cmd.Flags().StringVar(&f.systemDir, "system-dir", "", "Hidden directory for lock files")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "Reject writes")
	if remote {
		cmd.Flags().StringVar(&f.server, "server", "", "Use the named MCP server instead of a local store")
		cmd.Flags().StringVar(&f.mcpConfig, "mcp-config", "", "MCP server list (JSON)")
	}
}

// resolve merges flags over filesdb.yaml. It returns the adapter URI and
// the options to open it with.
func (f *storeFlags) resolve(remote bool) (string, []platform.Option) {
	opts := []platform.Option{platform.WithLogger(slog.Default())}
	uri := ""
	server := f.server
	mcpConfig := f.mcpConfig

	if fileConfig != nil {
		opts = append(opts, fileConfig.Options()...)
		uri = fileConfig.ResolvedPath()
		if server == "" && remote {
			server = fileConfig.Server
		}
		if mcpConfig == "" {
			mcpConfig = fileConfig.ResolvedMCPConfig()
		}
	}

	if f.adapter != "" {
		opts = append(opts, platform.WithAdapter(f.adapter))
	}
	if f.path != "" {
		uri = f.path
	}
	if uri == "" {
		if wd, err := os.Getwd(); err == nil {
			uri = wd
		}
	}
	if f.systemDir != "" {
		opts = append(opts, platform.WithSystemDir(f.systemDir))
	}
	if f.readOnly {
		opts = append(opts, platform.WithReadOnly(true))
	}

	if remote && server != "" && f.adapter == "" {
		opts = append(opts, platform.WithAdapter(platform.AdapterMCP), platform.WithMCPConfig(mcpConfig))
		uri = server
	}
	return uri, opts
}

func (f *storeFlags) openStore(ctx context.Context) *core.Store {
	uri, opts := f.resolve(true)
	store, err := platform.Open(ctx, uri, opts...)
	if err != nil {
		fatal("Failed to open store", err)
	}
	return store
}

func (f *storeFlags) openSpace(ctx context.Context) core.Space {
	uri, opts := f.resolve(false)
	space, err := platform.OpenSpace(ctx, uri, opts...)
	if err != nil {
		fatal("Failed to open store", err)
	}
	return space
}

// closeSpace releases spaces that hold resources, such as badger.
func closeSpace(space core.Space) {
	if c, ok := space.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}
}
