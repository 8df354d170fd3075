package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Store is the files store: read and write of JSON documents guarded by
// content-hash version tokens held by a Transport.
//
// Store keeps no document state and never retries. Conflicts (409) and all
// other transport failures reach the caller unchanged; the single exception
// is a success response without a token, which is escalated to a
// RemoteToolError wrapping ErrMissingETag.
type Store struct {
	transport Transport
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for debug tracing of calls.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over the given transport.
func NewStore(t Transport, opts ...StoreOption) *Store {
	s := &Store{transport: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport returns the underlying transport.
func (s *Store) Transport() Transport { return s.transport }

// Read returns the content and version token at path. A path that was
// never written yields the implicit empty document supplied by the transport.
func (s *Store) Read(ctx context.Context, path string) (Document, error) {
	res, err := s.transport.Invoke(ctx, OpReadJSON, map[string]any{ArgPath: path})
	if err != nil {
		s.debug("read failed", "path", path, "error", err)
		return Document{}, err
	}

	tag, ok := etagOf(res)
	if !ok {
		return Document{}, missingETag(OpReadJSON)
	}

	data, err := dataOf(res)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	s.debug("read", "path", path, "etag", tag)
	return Document{Path: path, Data: data, ETag: tag}, nil
}

// Write stores data at path and returns the new version token.
//
// An empty ifMatch writes unconditionally. Otherwise the transport rejects
// the write with a 409 RemoteToolError if the current token differs.
func (s *Store) Write(ctx context.Context, path string, data any, ifMatch string) (string, error) {
	raw, err := EncodeData(data)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	var match any
	if ifMatch != "" {
		match = ifMatch
	}

	res, err := s.transport.Invoke(ctx, OpWriteJSON, map[string]any{
		ArgPath:    path,
		ArgData:    raw,
		ArgIfMatch: match,
	})
	if err != nil {
		s.debug("write failed", "path", path, "if_match", ifMatch, "error", err)
		return "", err
	}

	tag, ok := etagOf(res)
	if !ok {
		return "", missingETag(OpWriteJSON)
	}

	s.debug("write", "path", path, "if_match", ifMatch, "etag", tag)
	return tag, nil
}

// Outcome tags the result of Swap.
type Outcome int

const (
	Written Outcome = iota
	Conflict
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// WriteResult is the tagged result of a compare-and-swap.
type WriteResult struct {
	Outcome Outcome
	ETag    string // set when Outcome is Written
	Status  int    // set when Outcome is Conflict or Failed
	Message string
}

// Swap is Write with the transport's rejections folded into a WriteResult.
// The error return is reserved for failures outside the taxonomy: a missing
// token, unencodable data, or a transport error that is not a
// RemoteToolError.
func (s *Store) Swap(ctx context.Context, path string, data any, ifMatch string) (WriteResult, error) {
	tag, err := s.Write(ctx, path, data, ifMatch)
	if err == nil {
		return WriteResult{Outcome: Written, ETag: tag}, nil
	}
	if errors.Is(err, ErrMissingETag) {
		return WriteResult{}, err
	}

	var rte *RemoteToolError
	if !errors.As(err, &rte) {
		return WriteResult{}, err
	}
	res := WriteResult{Outcome: Failed, Status: rte.Status, Message: rte.Message}
	if rte.Status == StatusConflict {
		res.Outcome = Conflict
	}
	return res, nil
}

// UpdateFunc computes new content from the current document.
type UpdateFunc func(current Document) (any, error)

type updateOptions struct {
	maxAttempts int
}

// UpdateOption configures Update.
type UpdateOption func(*updateOptions)

// WithMaxAttempts bounds the number of read-modify-write rounds.
func WithMaxAttempts(n int) UpdateOption {
	return func(o *updateOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// Update runs a read-modify-write loop: read, compute, write with the token
// just read. On conflict it re-reads and tries again. Any other error ends
// the loop. fn must be safe to call more than once.
func (s *Store) Update(ctx context.Context, path string, fn UpdateFunc, opts ...UpdateOption) (Document, error) {
	o := &updateOptions{maxAttempts: 5}
	for _, opt := range opts {
		opt(o)
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}

		current, err := s.Read(ctx, path)
		if err != nil {
			return Document{}, err
		}

		next, err := fn(current)
		if err != nil {
			return Document{}, err
		}
		raw, err := EncodeData(next)
		if err != nil {
			return Document{}, fmt.Errorf("update %s: %w", path, err)
		}

		tag, err := s.Write(ctx, path, raw, current.ETag)
		if err == nil {
			return Document{Path: path, Data: normalize(raw), ETag: tag}, nil
		}
		if !IsConflict(err) {
			return Document{}, err
		}

		s.debug("update conflict", "path", path, "attempt", attempt)
		lastErr = err
	}
	return Document{}, fmt.Errorf("update %s after %d attempts: %w", path, o.maxAttempts, errors.Join(ErrTooManyConflicts, lastErr))
}

// Close releases the transport if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func etagOf(res map[string]any) (string, bool) {
	tag, ok := res[ResultETag].(string)
	return tag, ok && tag != ""
}

func dataOf(res map[string]any) (json.RawMessage, error) {
	v, ok := res[ResultData]
	if !ok || v == nil {
		return nil, nil
	}
	raw, err := EncodeData(v)
	if err != nil {
		return nil, err
	}
	return normalize(raw), nil
}

// normalize maps JSON null to nil so absent content has one representation.
func normalize(raw json.RawMessage) json.RawMessage {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
