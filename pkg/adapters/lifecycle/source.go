// Package lifecycle publishes document change events as a lifecycle.Source.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/acmhack/filesdb/pkg/core"
)

type changeSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
}

// NewSource wraps a document event channel. The returned source closes its
// Events channel when the input closes or the start context ends.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &changeSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

// WatchSource watches space for documents matching pattern and exposes the
// changes as a source. Watching stops when ctx ends.
func WatchSource(ctx context.Context, space core.Watchable, pattern string) (lifecycle.Source, error) {
	events, err := space.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return NewSource(events), nil
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
