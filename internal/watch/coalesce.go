package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type pendingChange struct {
	timer     *time.Timer
	op        fsnotify.Op
	firstSeen time.Time
	lastSeen  time.Time
}

// Coalescer folds bursts of raw signals into one event per path per quiet
// period. A pending change is re-armed by every new signal but never past
// firstSeen+maxWindow, so sustained churn still emits within a bounded
// window. Submit and timer fires are serialized on one mutex; the handler
// runs under that mutex and must not call back into the coalescer.
type Coalescer struct {
	mu        sync.Mutex
	quiet     time.Duration
	maxWindow time.Duration
	handler   Handler
	pending   map[string]*pendingChange
	stopped   bool
}

func NewCoalescer(quiet, maxWindow time.Duration, handler Handler) *Coalescer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	if maxWindow < quiet {
		maxWindow = quiet
	}
	return &Coalescer{
		quiet:     quiet,
		maxWindow: maxWindow,
		handler:   handler,
		pending:   make(map[string]*pendingChange),
	}
}

// Submit records activity for the signal's path. The first signal for a path
// arms a quiet-period timer; later signals refresh it up to the aggregation
// ceiling.
func (coalescer *Coalescer) Submit(signal Signal) {
	if coalescer == nil {
		return
	}
	at := signal.At
	if at.IsZero() {
		at = time.Now()
	}

	coalescer.mu.Lock()
	defer coalescer.mu.Unlock()
	if coalescer.stopped {
		return
	}

	entry, ok := coalescer.pending[signal.Path]
	if !ok {
		entry = &pendingChange{
			op:        signal.Op,
			firstSeen: at,
			lastSeen:  at,
		}
		path := signal.Path
		entry.timer = time.AfterFunc(coalescer.quiet, func() {
			coalescer.flush(path)
		})
		coalescer.pending[signal.Path] = entry
		return
	}

	entry.op |= signal.Op
	if at.After(entry.lastSeen) {
		entry.lastSeen = at
	}
	entry.timer.Reset(coalescer.delayUntilFire(entry))
}

// delayUntilFire returns a full quiet period, clipped so the timer never
// fires later than firstSeen+maxWindow.
func (coalescer *Coalescer) delayUntilFire(entry *pendingChange) time.Duration {
	ceiling := entry.firstSeen.Add(coalescer.maxWindow)
	delay := coalescer.quiet
	if remaining := time.Until(ceiling); remaining < delay {
		delay = remaining
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (coalescer *Coalescer) flush(path string) {
	coalescer.mu.Lock()
	defer coalescer.mu.Unlock()
	if coalescer.stopped {
		return
	}
	entry, ok := coalescer.pending[path]
	if !ok {
		return
	}

	// A fire that raced a fresh Submit re-arms instead of delivering; the
	// quiet period is measured from the latest signal, not from scheduling.
	now := time.Now()
	ceiling := entry.firstSeen.Add(coalescer.maxWindow)
	if now.Before(ceiling) {
		if remaining := coalescer.quiet - now.Sub(entry.lastSeen); remaining > 0 {
			if untilCeiling := ceiling.Sub(now); untilCeiling < remaining {
				remaining = untilCeiling
			}
			entry.timer.Reset(remaining)
			return
		}
	}

	delete(coalescer.pending, path)

	if coalescer.handler == nil {
		return
	}
	coalescer.handler(Event{
		Path:      path,
		Op:        entry.op,
		FirstSeen: entry.firstSeen,
		LastSeen:  entry.lastSeen,
	})
}

// Pending reports how many paths currently await their quiet period.
func (coalescer *Coalescer) Pending() int {
	if coalescer == nil {
		return 0
	}
	coalescer.mu.Lock()
	defer coalescer.mu.Unlock()
	return len(coalescer.pending)
}

// Stop cancels every outstanding timer and drops pending state without
// firing. Idempotent; once Stop returns the handler is never invoked again.
func (coalescer *Coalescer) Stop() {
	if coalescer == nil {
		return
	}
	coalescer.mu.Lock()
	defer coalescer.mu.Unlock()
	if coalescer.stopped {
		return
	}
	coalescer.stopped = true
	for _, entry := range coalescer.pending {
		entry.timer.Stop()
	}
	coalescer.pending = nil
}
