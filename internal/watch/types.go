package watch

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal is one raw change observation produced by a strategy. Op carries
// the native notification flags when available and is zero for polling.
type Signal struct {
	Path string
	Op   fsnotify.Op
	At   time.Time
}

// Event is a coalesced change delivered to the handler: all signals for one
// path within a quiet period merged into a single notification.
type Event struct {
	Path      string
	Op        fsnotify.Op
	FirstSeen time.Time
	LastSeen  time.Time
}

// Handler receives coalesced change events. For a single path events arrive
// in non-decreasing time order; no ordering holds across distinct paths.
type Handler func(Event)

// Watcher is the shared strategy contract. Start and Stop return quickly and
// are safe to call repeatedly: Start while running and Stop while idle are
// no-ops. After Stop returns the handler is never invoked again until the
// next Start.
type Watcher interface {
	Start() error
	Stop()
	Metrics() Metrics
}

const (
	// DefaultQuietPeriod is the minimum silence after the last raw signal
	// before a pending change fires.
	DefaultQuietPeriod = 300 * time.Millisecond

	// DefaultMaxWindow bounds how long continuous churn on one path can
	// postpone its event, measured from the first signal.
	DefaultMaxWindow = 2 * time.Second
)
