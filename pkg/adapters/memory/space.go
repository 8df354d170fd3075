// Package memory provides an in-memory document space.
//
// Each Space owns its map; instances are independent and need no cleanup.
// It is the reference double for tests of code built on core.Store.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/etag"
)

type entry struct {
	data json.RawMessage
	etag string
}

// Space is a core.Space held in memory.
type Space struct {
	mu   sync.Mutex
	docs map[string]entry
}

// NewSpace creates an empty space.
func NewSpace() *Space {
	return &Space{docs: make(map[string]entry)}
}

// NewTransport returns a transport over a fresh space.
func NewTransport() *core.LocalTransport {
	return core.NewLocalTransport(NewSpace())
}

// ReadDocument returns the document at path. A missing path is materialized
// as the empty document.
func (s *Space) ReadDocument(ctx context.Context, path string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[path]
	if !ok {
		e = entry{etag: etag.Empty}
		s.docs[path] = e
	}
	return core.Document{Path: path, Data: clone(e.data), ETag: e.etag}, nil
}

// WriteDocument stores data at path if ifMatch is nil or equals the current token.
func (s *Space) WriteDocument(ctx context.Context, path string, data json.RawMessage, ifMatch *string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	canon, err := etag.Canonical(data)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}
	tag, err := etag.Of(canon)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := etag.Empty
	if e, ok := s.docs[path]; ok {
		current = e.etag
	}
	if ifMatch != nil && *ifMatch != current {
		return "", core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
	}

	var stored json.RawMessage
	if string(canon) != "null" {
		stored = canon
	}
	s.docs[path] = entry{data: stored, etag: tag}
	return tag, nil
}

// Len returns the number of materialized paths.
func (s *Space) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// ComponentType implements introspection.Component.
func (s *Space) ComponentType() string {
	return "memory"
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

var _ core.Space = (*Space)(nil)
