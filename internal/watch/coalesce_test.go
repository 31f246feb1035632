package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (recorder *eventRecorder) handle(event Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *eventRecorder) list() []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	out := make([]Event, len(recorder.events))
	copy(out, recorder.events)
	return out
}

func (recorder *eventRecorder) count() int {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return len(recorder.events)
}

func TestCoalescerEmitsOncePerBurst(t *testing.T) {
	recorder := &eventRecorder{}
	coalescer := NewCoalescer(40*time.Millisecond, time.Second, recorder.handle)
	defer coalescer.Stop()

	for i := 0; i < 5; i++ {
		coalescer.Submit(Signal{Path: "/watch/a.txt", Op: fsnotify.Write})
	}

	time.Sleep(150 * time.Millisecond)

	events := recorder.list()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Path != "/watch/a.txt" {
		t.Fatalf("expected path /watch/a.txt, got %q", events[0].Path)
	}
	if events[0].Op&fsnotify.Write == 0 {
		t.Fatalf("expected write flag, got %v", events[0].Op)
	}
	if coalescer.Pending() != 0 {
		t.Fatalf("expected no pending entries, got %d", coalescer.Pending())
	}
}

func TestCoalescerSeparatesQuietPeriods(t *testing.T) {
	recorder := &eventRecorder{}
	coalescer := NewCoalescer(30*time.Millisecond, time.Second, recorder.handle)
	defer coalescer.Stop()

	coalescer.Submit(Signal{Path: "/watch/a.txt"})
	time.Sleep(100 * time.Millisecond)
	coalescer.Submit(Signal{Path: "/watch/a.txt"})
	time.Sleep(100 * time.Millisecond)

	if count := recorder.count(); count != 2 {
		t.Fatalf("expected 2 events, got %d", count)
	}
}

func TestCoalescerKeepsPathsIndependent(t *testing.T) {
	recorder := &eventRecorder{}
	coalescer := NewCoalescer(30*time.Millisecond, time.Second, recorder.handle)
	defer coalescer.Stop()

	coalescer.Submit(Signal{Path: "/watch/a.txt"})
	coalescer.Submit(Signal{Path: "/watch/b.txt"})

	time.Sleep(120 * time.Millisecond)

	events := recorder.list()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	paths := map[string]bool{}
	for _, event := range events {
		paths[event.Path] = true
	}
	if !paths["/watch/a.txt"] || !paths["/watch/b.txt"] {
		t.Fatalf("expected both paths, got %v", paths)
	}
}

func TestCoalescerFiresUnderContinuousChurn(t *testing.T) {
	recorder := &eventRecorder{}
	quiet := 60 * time.Millisecond
	maxWindow := 200 * time.Millisecond
	coalescer := NewCoalescer(quiet, maxWindow, recorder.handle)
	defer coalescer.Stop()

	// Keep refreshing faster than the quiet period for longer than the
	// aggregation ceiling; the event must still fire.
	deadline := time.Now().Add(2 * maxWindow)
	for time.Now().Before(deadline) {
		coalescer.Submit(Signal{Path: "/watch/busy.txt", Op: fsnotify.Write})
		time.Sleep(quiet / 3)
	}

	if recorder.count() == 0 {
		t.Fatal("expected at least one event despite continuous churn")
	}
	first := recorder.list()[0]
	if elapsed := first.LastSeen.Sub(first.FirstSeen); elapsed > maxWindow+quiet {
		t.Fatalf("event aggregated too long: %s", elapsed)
	}
}

func TestCoalescerEarlyFireWaitsOutQuietPeriod(t *testing.T) {
	recorder := &eventRecorder{}
	quiet := 80 * time.Millisecond
	coalescer := NewCoalescer(quiet, time.Second, recorder.handle)
	defer coalescer.Stop()

	coalescer.Submit(Signal{Path: "/watch/a.txt", Op: fsnotify.Write, At: time.Now()})

	// A timer fire that arrives before the quiet period has elapsed, such as
	// one scheduled before a refreshing Submit, must re-arm, not deliver.
	coalescer.flush("/watch/a.txt")

	if count := recorder.count(); count != 0 {
		t.Fatalf("expected no delivery before the quiet period, got %d", count)
	}
	if coalescer.Pending() != 1 {
		t.Fatalf("expected entry to stay pending, got %d", coalescer.Pending())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && recorder.count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if count := recorder.count(); count != 1 {
		t.Fatalf("expected exactly 1 event after the quiet period, got %d", count)
	}
}

func TestCoalescerStopDropsPendingWithoutFiring(t *testing.T) {
	recorder := &eventRecorder{}
	coalescer := NewCoalescer(30*time.Millisecond, time.Second, recorder.handle)

	coalescer.Submit(Signal{Path: "/watch/a.txt"})
	coalescer.Stop()
	coalescer.Stop() // idempotent

	time.Sleep(100 * time.Millisecond)

	if count := recorder.count(); count != 0 {
		t.Fatalf("expected no events after stop, got %d", count)
	}

	// Submissions after stop are ignored.
	coalescer.Submit(Signal{Path: "/watch/b.txt"})
	time.Sleep(100 * time.Millisecond)
	if count := recorder.count(); count != 0 {
		t.Fatalf("expected no events after stopped submit, got %d", count)
	}
}

func TestCoalescerTracksFirstAndLastSeen(t *testing.T) {
	recorder := &eventRecorder{}
	coalescer := NewCoalescer(50*time.Millisecond, time.Second, recorder.handle)
	defer coalescer.Stop()

	start := time.Now()
	coalescer.Submit(Signal{Path: "/watch/a.txt", At: start})
	coalescer.Submit(Signal{Path: "/watch/a.txt", At: start.Add(20 * time.Millisecond)})

	time.Sleep(150 * time.Millisecond)

	events := recorder.list()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].FirstSeen.Equal(start) {
		t.Fatalf("expected firstSeen %v, got %v", start, events[0].FirstSeen)
	}
	if !events[0].LastSeen.After(events[0].FirstSeen) {
		t.Fatal("expected lastSeen to advance past firstSeen")
	}
}
