// Package core holds the document model, the transport and space ports,
// and the Store that enforces the version-token contract over a transport.
package core

import (
	"encoding/json"
	"fmt"
)

// Document is a JSON value stored at a path together with its version token.
// A nil Data means the document is absent.
type Document struct {
	Path string
	Data json.RawMessage
	ETag string
}

// Exists reports whether the document holds content.
func (d Document) Exists() bool {
	return len(d.Data) > 0 && string(d.Data) != "null"
}

// Decode unmarshals the document content into v.
func (d Document) Decode(v any) error {
	if !d.Exists() {
		return nil
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return nil
}

// EventType represents the type of change in a document space.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
)

// Event represents a change observed in a document space.
type Event struct {
	Type      EventType
	Path      string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Path)
}
