package fs

import (
	"sync"
	"time"

	"github.com/acmhack/filesdb/pkg/core"
)

// debouncer coalesces bursts of events for the same path. fsnotify often
// reports a single atomic write as several events (create, chmod, rename).
type debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	event core.Event
	timer *time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
	}
}

// add schedules fire(event) after the window. A newer event for the same
// path replaces the pending one; a CREATE is never downgraded to MODIFY.
func (d *debouncer) add(event core.Event, fire func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[event.Path]; ok {
		if p.event.Type == core.EventCreate {
			event.Type = core.EventCreate
		}
		if p.timer.Stop() {
			p.event = event
			p.timer.Reset(d.window)
			return
		}
		// The callback is already running and will find itself replaced.
	}

	d.schedule(event, fire)
}

// schedule registers a new pending event. d.mu must be held.
func (d *debouncer) schedule(event core.Event, fire func(core.Event)) {
	p := &pendingEvent{event: event}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.window, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.stopped || d.pending[event.Path] != p {
			d.mu.Unlock()
			return
		}
		e := p.event
		delete(d.pending, event.Path)
		d.mu.Unlock()

		fire(e)
	})
	d.pending[event.Path] = p
}

// stopAndWait drops future events and waits up to timeout for in-flight
// callbacks.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
			delete(d.pending, path)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
