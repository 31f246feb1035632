package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStreamOptions() StreamOptions {
	return StreamOptions{QuietPeriod: testQuiet, MaxWindow: 500 * time.Millisecond}
}

func TestNewStreamWatcherValidatesInput(t *testing.T) {
	handler := func(Event) {}

	if _, err := NewStreamWatcher(nil, nil, handler, nil, StreamOptions{}); err == nil {
		t.Fatal("expected error for empty roots")
	}
	if _, err := NewStreamWatcher([]string{t.TempDir()}, nil, nil, nil, StreamOptions{}); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if _, err := NewStreamWatcher([]string{filepath.Join(t.TempDir(), "missing")}, nil, handler, nil, StreamOptions{}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestStreamWatcherReportsWrite(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, []string{"txt"}, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	waitForCount(t, recorder, 1)
	if got := recorder.list()[0].Path; got != path {
		t.Fatalf("expected path %q, got %q", path, got)
	}
}

func TestStreamWatcherFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, []string{"txt"}, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.log"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}

	waitForCount(t, recorder, 1)
	time.Sleep(100 * time.Millisecond)

	events := recorder.list()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	if filepath.Base(events[0].Path) != "a.txt" {
		t.Fatalf("expected a.txt, got %q", events[0].Path)
	}
}

func TestStreamWatcherCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, nil, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	path := filepath.Join(root, "burst.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	waitForCount(t, recorder, 1)
	time.Sleep(100 * time.Millisecond)

	if count := recorder.count(); count != 1 {
		t.Fatalf("expected 1 coalesced event, got %d", count)
	}
}

func TestStreamWatcherCoversNewDirectories(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, []string{"txt"}, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	nested := filepath.Join(root, "sub")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to subscribe to the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(nested, "inner.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write nested file: %v", err)
	}

	waitForCount(t, recorder, 1)
	if got := recorder.list()[0].Path; got != path {
		t.Fatalf("expected nested path %q, got %q", path, got)
	}
}

func TestStreamWatcherStopIsSynchronous(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, nil, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	watcher.Stop()
	watcher.Stop() // idempotent

	baseline := recorder.count()
	time.Sleep(150 * time.Millisecond)
	if recorder.count() != baseline {
		t.Fatalf("handler invoked after stop: %d -> %d", baseline, recorder.count())
	}
}

func TestStreamWatcherLifecycleIsIdempotent(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, nil, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	if err := watcher.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	watcher.Stop()
	watcher.Stop()

	if err := watcher.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer watcher.Stop()

	path := filepath.Join(root, "again.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	waitForCount(t, recorder, 1)
}

func TestStreamWatcherCountsFilteredSignals(t *testing.T) {
	root := t.TempDir()
	recorder := &eventRecorder{}

	watcher, err := NewStreamWatcher([]string{root}, []string{"txt"}, recorder.handle, nil, testStreamOptions())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(filepath.Join(root, "skip.log"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if watcher.Metrics().SignalsFiltered > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected filtered signal count, got %+v", watcher.Metrics())
}
