package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chime/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

// StreamWatcher subscribes to native change notifications for a set of root
// paths. The subscription covers each root and every nested directory;
// directories created while running are added so coverage stays recursive.
//
// A subscription failure at Start is logged once and leaves the watcher
// idle — there is no retry loop here. Callers that want a fallback can
// construct a PollWatcher instead.
type StreamWatcher struct {
	roots     []string
	quiet     time.Duration
	maxWindow time.Duration
	filter    *ExtensionFilter
	handler   Handler
	logger    *logging.Logger
	stats     counters

	mu        sync.Mutex
	running   bool
	notifier  *fsnotify.Watcher
	coalescer *Coalescer
	done      chan struct{}
	loopDone  chan struct{}
}

// StreamOptions adjusts debounce behavior; zero values take the defaults.
type StreamOptions struct {
	QuietPeriod time.Duration
	MaxWindow   time.Duration
}

func NewStreamWatcher(roots []string, extensions []string, handler Handler, logger *logging.Logger, options StreamOptions) (*StreamWatcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("at least one watch root is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("watch root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("watch root %s is not a directory", root)
		}
	}

	return &StreamWatcher{
		roots:     roots,
		quiet:     options.QuietPeriod,
		maxWindow: options.MaxWindow,
		filter:    NewExtensionFilter(extensions),
		handler:   handler,
		logger:    logger,
	}, nil
}

// Start creates the native subscription and begins consuming events. Calling
// Start while running is a no-op. On subscription failure the error is
// logged once, the watcher stays idle, and the error is returned so callers
// can fall back to polling.
func (watcher *StreamWatcher) Start() error {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	if watcher.running {
		return nil
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		watcher.stats.errors.Add(1)
		watcher.logError("change notification unavailable", err)
		return err
	}

	for _, root := range watcher.roots {
		if err := watcher.subscribeTree(notifier, root); err != nil {
			watcher.stats.errors.Add(1)
			watcher.logError("subscription failed", err)
			_ = notifier.Close()
			return err
		}
	}

	watcher.notifier = notifier
	watcher.coalescer = NewCoalescer(watcher.quiet, watcher.maxWindow, func(event Event) {
		watcher.stats.eventsDelivered.Add(1)
		watcher.handler(event)
	})
	watcher.done = make(chan struct{})
	watcher.loopDone = make(chan struct{})
	watcher.running = true

	go watcher.consume(notifier, watcher.coalescer, watcher.done, watcher.loopDone)

	watcher.logInfo("stream watcher started", map[string]string{
		"roots": fmt.Sprintf("%d", len(watcher.roots)),
	})
	return nil
}

// Stop tears the subscription down synchronously: when it returns the
// consuming goroutine has exited and no handler invocation can follow, even
// for notifications that were in flight.
func (watcher *StreamWatcher) Stop() {
	watcher.mu.Lock()
	if !watcher.running {
		watcher.mu.Unlock()
		return
	}
	watcher.running = false
	watcher.coalescer.Stop()
	close(watcher.done)
	_ = watcher.notifier.Close()
	loopDone := watcher.loopDone
	watcher.mu.Unlock()

	<-loopDone

	watcher.logInfo("stream watcher stopped", nil)
}

// Metrics reports counters for the current watch session.
func (watcher *StreamWatcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	return watcher.stats.snapshot()
}

// subscribeTree adds the root and all nested directories to the notifier.
// The root must subscribe; unreadable subdirectories are logged and skipped.
func (watcher *StreamWatcher) subscribeTree(notifier *fsnotify.Watcher, root string) error {
	if err := notifier.Add(root); err != nil {
		return fmt.Errorf("add %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			watcher.logWarn("walk entry skipped", walkErr)
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		if err := notifier.Add(path); err != nil {
			watcher.logWarn("watch add failed", err)
		}
		return nil
	})
}

func (watcher *StreamWatcher) consume(notifier *fsnotify.Watcher, coalescer *Coalescer, done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)
	for {
		select {
		case notification, ok := <-notifier.Events:
			if !ok {
				return
			}
			watcher.handleNotification(notifier, coalescer, notification)
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			watcher.stats.errors.Add(1)
			watcher.logWarn("notification stream error", err)
		case <-done:
			return
		}
	}
}

func (watcher *StreamWatcher) handleNotification(notifier *fsnotify.Watcher, coalescer *Coalescer, notification fsnotify.Event) {
	if notification.Op&relevantOps == 0 {
		return
	}

	// New directories join the subscription so nested changes keep arriving.
	if notification.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(notification.Name); err == nil && info.IsDir() {
			if err := watcher.subscribeTree(notifier, notification.Name); err != nil {
				watcher.logWarn("watch add failed", err)
			}
			return
		}
	}

	watcher.stats.signalsObserved.Add(1)
	if !watcher.filter.Match(notification.Name) {
		watcher.stats.signalsFiltered.Add(1)
		return
	}
	if watcher.logger != nil && watcher.logger.Enabled(logging.LevelDebug) {
		watcher.logger.Debug("raw change signal", map[string]string{
			"path": notification.Name,
			"op":   notification.Op.String(),
		})
	}
	coalescer.Submit(Signal{Path: notification.Name, Op: notification.Op, At: time.Now()})
}

func (watcher *StreamWatcher) logInfo(message string, fields map[string]string) {
	if watcher.logger == nil {
		return
	}
	watcher.logger.Info(message, fields)
}

func (watcher *StreamWatcher) logWarn(message string, err error) {
	if watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, map[string]string{"error": err.Error()})
}

func (watcher *StreamWatcher) logError(message string, err error) {
	if watcher.logger == nil {
		return
	}
	watcher.logger.Error(message, map[string]string{"error": err.Error()})
}
