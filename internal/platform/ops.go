package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/acmhack/filesdb/pkg/adapters/badger"
	"github.com/acmhack/filesdb/pkg/adapters/fs"
	"github.com/acmhack/filesdb/pkg/adapters/mcp"
	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
)

// OpenSpace builds the document space selected by the options.
// The 'uri' argument is adapter-specific: a directory for "fs" and
// "badger", ignored for "memory".
func OpenSpace(ctx context.Context, uri string, opts ...Option) (core.Space, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openSpace(ctx, uri, o)
}

func openSpace(ctx context.Context, uri string, o *options) (core.Space, error) {
	if o.space != nil {
		return o.space, nil
	}

	switch o.adapter {
	case AdapterFS:
		return initFS(ctx, uri, o)
	case AdapterMemory:
		return memory.NewSpace(), nil
	case AdapterBadger:
		inMemory, _ := o.config["in_memory"].(bool)
		dir := ""
		if !inMemory {
			dir = ResolvePath(uri, useTemp(o))
		}
		return badger.Open(badger.Options{Dir: dir, InMemory: inMemory, Logger: o.logger})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// OpenTransport builds the transport selected by the options. For the
// "mcp" adapter 'uri' names a server in the MCP config file.
func OpenTransport(ctx context.Context, uri string, opts ...Option) (core.Transport, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openTransport(ctx, uri, o)
}

func openTransport(ctx context.Context, uri string, o *options) (core.Transport, error) {
	if o.transport != nil {
		return o.transport, nil
	}
	if o.adapter == AdapterMCP && o.space == nil {
		return dialMCP(ctx, uri, o)
	}

	space, err := openSpace(ctx, uri, o)
	if err != nil {
		return nil, err
	}
	return core.NewLocalTransport(space), nil
}

func dialMCP(ctx context.Context, name string, o *options) (core.Transport, error) {
	configPath, _ := o.config["mcp_config"].(string)
	if configPath == "" {
		return nil, fmt.Errorf("mcp adapter requires an MCP config file")
	}
	cfg, err := mcp.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	clientOpts := []mcp.ClientOption{mcp.WithClientLogger(o.logger)}
	if d, ok := o.config["call_timeout"].(time.Duration); ok {
		clientOpts = append(clientOpts, mcp.WithCallTimeout(d))
	}
	if n, ok := o.config["max_retries"].(int); ok {
		clientOpts = append(clientOpts, mcp.WithMaxRetries(n))
	}
	return mcp.DialNamed(ctx, cfg, name, clientOpts...)
}

// initFS handles the initialization logic for the filesystem adapter.
func initFS(ctx context.Context, path string, o *options) (*fs.Space, error) {
	mustExist, _ := o.config["must_exist"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	isReadOnly, _ := o.config["read_only"].(bool)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	temp := useTemp(o)
	resolved := ResolvePath(path, temp)
	if o.logger != nil && temp && filepath.Clean(path) != resolved {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", path, "resolved_path", resolved)
	}

	space := fs.NewSpace(fs.Config{
		Path:         resolved,
		MustExist:    mustExist,
		ReadOnly:     isReadOnly,
		Logger:       o.logger,
		SystemDir:    systemDir,
		ErrorHandler: errorHandler,
	})
	if err := space.Initialize(ctx); err != nil {
		return nil, err
	}
	return space, nil
}

// useTemp reports whether on-disk paths go to the dev sandbox.
func useTemp(o *options) bool {
	tempDir, _ := o.config["temp_dir"].(bool)
	isReadOnly, _ := o.config["read_only"].(bool)
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}
	return tempDir || (IsDevRun() && !isReadOnly && devSafety)
}
