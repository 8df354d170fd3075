package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// SpaceState exposes internal state for observability.
type SpaceState struct {
	Path          string     `json:"path"`
	SystemDir     string     `json:"system_dir"`
	ReadOnly      bool       `json:"read_only"`
	WatcherActive bool       `json:"watcher_active"`
	Writes        int64      `json:"writes"`
	Conflicts     int64      `json:"conflicts"`
	LastWrite     *time.Time `json:"last_write,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Space) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SpaceState{
		Path:          s.Path,
		SystemDir:     s.config.SystemDir,
		ReadOnly:      s.config.ReadOnly,
		WatcherActive: s.watcherActive,
		Writes:        s.writes,
		Conflicts:     s.conflicts,
		LastWrite:     s.lastWrite,
	}
}

// ComponentType implements introspection.Component.
func (s *Space) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Space)(nil)
var _ introspection.Component = (*Space)(nil)

func (s *Space) setWatcherActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherActive = active
}
