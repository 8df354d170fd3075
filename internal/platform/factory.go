package platform

import (
	"context"

	"github.com/acmhack/filesdb/pkg/core"
)

// Open returns a store over the adapter selected by the options.
//
//	store, err := filesdb.Open("./data", filesdb.WithAdapter("fs"))
//
// The URI argument is adapter-specific (a directory for "fs" and "badger",
// a server name for "mcp").
func Open(ctx context.Context, uri string, opts ...Option) (*core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	t, err := openTransport(ctx, uri, o)
	if err != nil {
		return nil, err
	}
	if o.logger != nil {
		o.logger.Debug("store opened", "adapter", o.adapter, "uri", uri)
	}
	return core.NewStore(t, core.WithStoreLogger(o.logger)), nil
}
