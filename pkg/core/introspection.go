package core

import (
	"fmt"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	TransportType string `json:"transport_type"`
	SpaceType     string `json:"space_type,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	state := StoreState{TransportType: "unknown"}
	if s.transport == nil {
		return state
	}

	if comp, ok := s.transport.(introspection.Component); ok {
		state.TransportType = comp.ComponentType()
	} else {
		state.TransportType = fmt.Sprintf("%T", s.transport)
	}

	if local, ok := s.transport.(*LocalTransport); ok {
		if comp, ok := local.Space().(introspection.Component); ok {
			state.SpaceType = comp.ComponentType()
		} else {
			state.SpaceType = fmt.Sprintf("%T", local.Space())
		}
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

// ComponentType implements introspection.Component.
func (t *LocalTransport) ComponentType() string {
	return "local"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Component = (*LocalTransport)(nil)
