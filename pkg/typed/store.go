// Package typed offers a type-safe view over core.Store.
package typed

import (
	"context"
	"fmt"

	"github.com/acmhack/filesdb/pkg/core"
)

// Document is a decoded document together with the version token it was
// read at.
type Document[T any] struct {
	Path   string
	Data   T
	ETag   string
	Exists bool

	saver Saver[T]
}

// Saver persists a typed document.
type Saver[T any] interface {
	Save(ctx context.Context, doc *Document[T]) error
}

// Save writes the document through the store it was loaded from. The
// write is conditional on the token the document carries, so a concurrent
// change surfaces as a conflict.
func (d *Document[T]) Save(ctx context.Context) error {
	if d.saver == nil {
		return fmt.Errorf("document is detached (missing Saver)")
	}
	return d.saver.Save(ctx, d)
}

// Store wraps a core.Store for values of type T.
type Store[T any] struct {
	store *core.Store
}

// NewStore creates a typed wrapper around store.
func NewStore[T any](store *core.Store) *Store[T] {
	return &Store[T]{store: store}
}

// Get reads and decodes the document at path. A never-written path yields
// the zero T with Exists false.
func (s *Store[T]) Get(ctx context.Context, path string) (*Document[T], error) {
	raw, err := s.store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.fromCore(raw)
}

// Save writes doc.Data at doc.Path. An empty doc.ETag writes
// unconditionally. On success doc.ETag holds the new token.
func (s *Store[T]) Save(ctx context.Context, doc *Document[T]) error {
	tag, err := s.store.Write(ctx, doc.Path, doc.Data, doc.ETag)
	if err != nil {
		return err
	}
	doc.ETag = tag
	doc.Exists = true
	if doc.saver == nil {
		doc.saver = s
	}
	return nil
}

// Put writes v at path unconditionally.
func (s *Store[T]) Put(ctx context.Context, path string, v T) (*Document[T], error) {
	doc := &Document[T]{Path: path, Data: v}
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update applies fn to the current value and writes it back, re-reading on
// conflict as core.Store.Update does.
func (s *Store[T]) Update(ctx context.Context, path string, fn func(*T) error, opts ...core.UpdateOption) (*Document[T], error) {
	raw, err := s.store.Update(ctx, path, func(cur core.Document) (any, error) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return v, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return s.fromCore(raw)
}

func (s *Store[T]) fromCore(raw core.Document) (*Document[T], error) {
	doc := &Document[T]{
		Path:   raw.Path,
		ETag:   raw.ETag,
		Exists: raw.Exists(),
		saver:  s,
	}
	if err := raw.Decode(&doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", raw.Path, err)
	}
	return doc, nil
}
