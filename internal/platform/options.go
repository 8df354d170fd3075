package platform

import (
	"log/slog"
	"time"

	"github.com/acmhack/filesdb/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterMemory = "memory"
	AdapterBadger = "badger"
	AdapterMCP    = "mcp"
)

// options holds the internal configuration for opening a store.
type options struct {
	transport core.Transport
	space     core.Space
	logger    *slog.Logger
	adapter   string
	config    map[string]interface{}
}

// Option defines a functional option for opening a store.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]interface{}),
	}
}

// WithLogger sets the logger for the store and its adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport injects a ready transport (e.g. a stub or a remote client).
// Adapter selection is skipped.
func WithTransport(t core.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithSpace injects a custom document space. It is served through the
// local transport and adapter selection is skipped.
func WithSpace(space core.Space) Option {
	return func(o *options) {
		o.space = space
	}
}

// WithAdapter selects the backing adapter by name: "fs" (default),
// "memory", "badger" or "mcp".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the hidden directory used by the fs adapter for lock
// files. Defaults to ".filesdb".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithMustExist ensures the fs root already exists.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithReadOnly rejects every write with StatusForbidden. The fs root is not
// created and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithForceTemp re-roots the fs path into the temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default (true) an fs path outside the temporary directory is
// re-rooted there.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithWatcherErrorHandler registers a callback for fs watch loop errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithInMemory runs the badger adapter without disk persistence.
func WithInMemory(enabled bool) Option {
	return func(o *options) {
		o.config["in_memory"] = enabled
	}
}

// WithMCPConfig sets the JSON file listing MCP servers for the "mcp"
// adapter. The URI passed to Open names the server.
func WithMCPConfig(path string) Option {
	return func(o *options) {
		o.config["mcp_config"] = path
	}
}

// WithCallTimeout bounds each remote tool call of the "mcp" adapter.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["call_timeout"] = d
	}
}

// WithMaxRetries sets how often the "mcp" adapter retries a read after a
// connection failure.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.config["max_retries"] = n
	}
}
