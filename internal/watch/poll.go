package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"chime/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// fileState is one snapshot entry. Two generations of the same path are
// considered unchanged when both modification time and size agree.
type fileState struct {
	modTime time.Time
	size    int64
}

// PollWatcher detects changes by walking the tree at a fixed interval and
// diffing the resulting snapshot against the previous generation. The first
// walk after Start seeds the baseline; only changes observed after that are
// reported.
type PollWatcher struct {
	root      string
	interval  time.Duration
	quiet     time.Duration
	maxWindow time.Duration
	filter    *ExtensionFilter
	handler   Handler
	logger    *logging.Logger
	stats     counters

	mu        sync.Mutex
	running   bool
	done      chan struct{}
	loopDone  chan struct{}
	coalescer *Coalescer
}

// PollOptions adjusts debounce behavior; zero values take the defaults.
type PollOptions struct {
	QuietPeriod time.Duration
	MaxWindow   time.Duration
}

func NewPollWatcher(root string, interval time.Duration, extensions []string, handler Handler, logger *logging.Logger, options PollOptions) (*PollWatcher, error) {
	if root == "" {
		return nil, errors.New("watch root is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	return &PollWatcher{
		root:      root,
		interval:  interval,
		quiet:     options.QuietPeriod,
		maxWindow: options.MaxWindow,
		filter:    NewExtensionFilter(extensions),
		handler:   handler,
		logger:    logger,
	}, nil
}

// Start begins the polling cycle. Calling Start while running is a no-op.
func (watcher *PollWatcher) Start() error {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	if watcher.running {
		return nil
	}
	watcher.running = true
	watcher.done = make(chan struct{})
	watcher.loopDone = make(chan struct{})
	watcher.coalescer = NewCoalescer(watcher.quiet, watcher.maxWindow, func(event Event) {
		watcher.stats.eventsDelivered.Add(1)
		watcher.handler(event)
	})

	go watcher.run(watcher.coalescer, watcher.done, watcher.loopDone)

	watcher.logInfo("polling watcher started", map[string]string{
		"path":     watcher.root,
		"interval": watcher.interval.String(),
	})
	return nil
}

// Stop halts the cycle synchronously: when it returns the polling goroutine
// has exited and the handler is never invoked again. An in-flight walk may
// finish but its signals are dropped.
func (watcher *PollWatcher) Stop() {
	watcher.mu.Lock()
	if !watcher.running {
		watcher.mu.Unlock()
		return
	}
	watcher.running = false
	watcher.coalescer.Stop()
	close(watcher.done)
	loopDone := watcher.loopDone
	watcher.mu.Unlock()

	<-loopDone

	watcher.logInfo("polling watcher stopped", map[string]string{
		"path": watcher.root,
	})
}

// Metrics reports counters for the current watch session.
func (watcher *PollWatcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	return watcher.stats.snapshot()
}

// run owns the snapshot for its session; keeping it off the struct means an
// old session's goroutine can never write state a restarted watcher reads.
func (watcher *PollWatcher) run(coalescer *Coalescer, done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	// Seed the baseline before the first tick so pre-existing files are not
	// reported as created.
	previous, err := watcher.snapshot()
	if err != nil {
		watcher.stats.errors.Add(1)
		watcher.logWarn("baseline snapshot failed", err)
	}

	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			previous = watcher.cycle(coalescer, previous)
		case <-done:
			return
		}
	}
}

// cycle performs one snapshot+diff pass and returns the new generation. A
// failure walking the whole tree aborts only this cycle; the next tick
// retries against the old generation.
func (watcher *PollWatcher) cycle(coalescer *Coalescer, previous map[string]fileState) map[string]fileState {
	next, err := watcher.snapshot()
	if err != nil {
		watcher.stats.errors.Add(1)
		watcher.logWarn("poll cycle failed", err)
		return previous
	}

	for _, signal := range diffSnapshots(previous, next) {
		watcher.stats.signalsObserved.Add(1)
		if !watcher.filter.Match(signal.Path) {
			watcher.stats.signalsFiltered.Add(1)
			continue
		}
		if watcher.logger != nil && watcher.logger.Enabled(logging.LevelDebug) {
			watcher.logger.Debug("raw change signal", map[string]string{
				"path": signal.Path,
				"op":   signal.Op.String(),
			})
		}
		coalescer.Submit(signal)
	}
	return next
}

// snapshot walks the tree and records modTime and size for every file. The
// extension filter applies at diff time so filtered changes are counted,
// not silently absent. Per-entry failures are logged and treated as absent.
func (watcher *PollWatcher) snapshot() (map[string]fileState, error) {
	if _, err := os.Stat(watcher.root); err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}

	snapshot := make(map[string]fileState)
	skipped := 0
	err := filepath.WalkDir(watcher.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			skipped++
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		info, statErr := entry.Info()
		if statErr != nil {
			skipped++
			return nil
		}
		snapshot[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 && watcher.logger != nil {
		watcher.logger.Warn("snapshot skipped unreadable entries", map[string]string{
			"path":    watcher.root,
			"skipped": strconv.Itoa(skipped),
		})
	}
	return snapshot, nil
}

// diffSnapshots derives raw signals from two snapshot generations: created,
// removed, or modTime/size-changed paths. Unchanged paths produce nothing.
func diffSnapshots(previous, next map[string]fileState) []Signal {
	now := time.Now()
	var signals []Signal

	for path, state := range next {
		before, existed := previous[path]
		if !existed {
			signals = append(signals, Signal{Path: path, Op: fsnotify.Create, At: now})
			continue
		}
		if !before.modTime.Equal(state.modTime) || before.size != state.size {
			signals = append(signals, Signal{Path: path, Op: fsnotify.Write, At: now})
		}
	}
	for path := range previous {
		if _, exists := next[path]; !exists {
			signals = append(signals, Signal{Path: path, Op: fsnotify.Remove, At: now})
		}
	}
	return signals
}

func (watcher *PollWatcher) logInfo(message string, fields map[string]string) {
	if watcher.logger == nil {
		return
	}
	watcher.logger.Info(message, fields)
}

func (watcher *PollWatcher) logWarn(message string, err error) {
	if watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, map[string]string{
		"path":  watcher.root,
		"error": err.Error(),
	})
}
