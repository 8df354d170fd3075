// Package badger stores JSON documents in BadgerDB.
//
// Each document is one key ("doc:" + path) holding a msgpack record of the
// canonical content and its token. The compare-and-swap runs inside a
// Badger read-write transaction; transactions aborted by Badger's conflict
// detection are re-run, so the compare always sees the latest committed
// token.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/etag"
)

const keyPrefix = "doc:"

// maxTxnRetries bounds re-runs of a transaction aborted by badger.ErrConflict.
const maxTxnRetries = 64

// Options configures the Badger space.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	Logger *slog.Logger
}

// record is the stored value of a document.
type record struct {
	Data []byte `msgpack:"d"`
	ETag string `msgpack:"e"`
}

// Space implements core.Space on BadgerDB.
type Space struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a Badger-backed space.
func Open(opts Options) (*Space, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(slogLogger{opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Space{db: db, logger: opts.Logger}, nil
}

// ReadDocument returns the document at path, or the implicit empty document.
func (s *Space) ReadDocument(ctx context.Context, path string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	if path == "" {
		return core.Document{}, core.NewRemoteToolError(core.StatusBadRequest, "invalid path %q", path)
	}

	var rec *record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = get(txn, path)
		return err
	})
	if err != nil {
		return core.Document{}, err
	}

	doc := core.Document{Path: path, ETag: etag.Empty}
	if rec != nil {
		doc.ETag = rec.ETag
		if len(rec.Data) > 0 {
			doc.Data = rec.Data
		}
	}
	return doc, nil
}

// WriteDocument stores data at path when ifMatch is nil or current.
func (s *Space) WriteDocument(ctx context.Context, path string, data json.RawMessage, ifMatch *string) (string, error) {
	if path == "" {
		return "", core.NewRemoteToolError(core.StatusBadRequest, "invalid path %q", path)
	}

	canon, err := etag.Canonical(data)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}
	tag, err := etag.Of(canon)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}

	next := record{ETag: tag}
	if string(canon) != "null" {
		next.Data = canon
	}
	value, err := msgpack.Marshal(&next)
	if err != nil {
		return "", fmt.Errorf("badger: encode record: %w", err)
	}

	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			cur, err := get(txn, path)
			if err != nil {
				return err
			}
			current := etag.Empty
			if cur != nil {
				current = cur.ETag
			}
			if ifMatch != nil && *ifMatch != current {
				return core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
			}
			return txn.Set([]byte(keyPrefix+path), value)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		if s.logger != nil {
			s.logger.Debug("badger transaction conflict, retrying", "path", path, "attempt", attempt+1)
		}
	}
	if err != nil {
		return "", err
	}
	return tag, nil
}

// Close releases the database.
func (s *Space) Close() error {
	return s.db.Close()
}

// ComponentType implements introspection.Component.
func (s *Space) ComponentType() string {
	return "badger"
}

func get(txn *badger.Txn, path string) (*record, error) {
	item, err := txn.Get([]byte(keyPrefix + path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec record
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("badger: decode record %s: %w", path, err)
	}
	return &rec, nil
}

// slogLogger adapts slog to badger.Logger, dropping debug and info output.
type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Errorf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf("[badger] "+f, v...))
	}
}

func (l slogLogger) Warningf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Warn(fmt.Sprintf("[badger] "+f, v...))
	}
}

func (slogLogger) Infof(string, ...interface{})  {}
func (slogLogger) Debugf(string, ...interface{}) {}

var _ core.Space = (*Space)(nil)
