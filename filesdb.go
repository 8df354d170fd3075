package filesdb

import (
	"context"
	"log/slog"
	"time"

	"github.com/acmhack/filesdb/internal/platform"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/typed"
)

// Version is the library and CLI version.
const Version = "0.1.0"

// --- Types ---

// Store is the document store.
type Store = core.Store

// Document is a path, its raw JSON content and its version token.
type Document = core.Document

// Transport invokes the files tools.
type Transport = core.Transport

// RemoteToolError is the error taxonomy of every transport.
type RemoteToolError = core.RemoteToolError

// TypedStore is a public alias for the typed store.
type TypedStore[T any] = typed.Store[T]

// TypedDocument is a public alias for the typed document.
type TypedDocument[T any] = typed.Document[T]

// --- Configuration ---

// Option defines a functional option for opening a store.
type Option = platform.Option

// WithLogger sets the logger for the store and its adapter.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the backing adapter: "fs", "memory", "badger" or "mcp".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithTransport injects a ready transport.
func WithTransport(t core.Transport) Option {
	return platform.WithTransport(t)
}

// WithSpace injects a custom document space.
func WithSpace(space core.Space) Option {
	return platform.WithSpace(space)
}

// WithSystemDir sets the hidden directory name (e.g. ".filesdb").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly rejects every write.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithInMemory runs the badger adapter without persistence.
func WithInMemory(enabled bool) Option {
	return platform.WithInMemory(enabled)
}

// WithMCPConfig sets the MCP server list used by the "mcp" adapter.
func WithMCPConfig(path string) Option {
	return platform.WithMCPConfig(path)
}

// WithCallTimeout bounds each remote tool call.
func WithCallTimeout(d time.Duration) Option {
	return platform.WithCallTimeout(d)
}

// WithMaxRetries sets how often a remote read is retried.
func WithMaxRetries(n int) Option {
	return platform.WithMaxRetries(n)
}

// --- Factory ---

// Open creates a store over the selected adapter.
func Open(ctx context.Context, uri string, opts ...Option) (*core.Store, error) {
	return platform.Open(ctx, uri, opts...)
}

// OpenTyped opens a store and wraps it for values of type T.
func OpenTyped[T any](ctx context.Context, uri string, opts ...Option) (*typed.Store[T], error) {
	s, err := Open(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}
	return typed.NewStore[T](s), nil
}

// NewTyped wraps an existing store for values of type T.
func NewTyped[T any](s *core.Store) *typed.Store[T] {
	return typed.NewStore[T](s)
}

// --- Utils ---

// FindRoot looks upwards for a .filesdb directory or filesdb.yaml file.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	return core.IsConflict(err)
}
