package monitor

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"chime/internal/logging"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// probeFunc returns established TCP connection counts keyed by PID for
// processes matching the configured name.
type probeFunc func() (map[int32]int, error)

// NetActivity watches the network behavior of a named process family and
// reports activity transitions. Activity means a matching process gained
// connections since the last probe, or appeared with connections already
// open; it is a coarse heuristic, not an exact byte counter.
type NetActivity struct {
	processName string
	interval    time.Duration
	logger      *logging.Logger
	onActivity  func(detail string)
	probe       probeFunc

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	previous map[int32]int
	active   bool
}

func NewNetActivity(processName string, interval time.Duration, logger *logging.Logger, onActivity func(detail string)) *NetActivity {
	monitor := &NetActivity{
		processName: processName,
		interval:    interval,
		logger:      logger,
		onActivity:  onActivity,
	}
	monitor.probe = monitor.probeProcesses
	return monitor
}

// Start begins probing. No-op while running or when no process is named.
func (monitor *NetActivity) Start() {
	if monitor == nil || monitor.processName == "" {
		return
	}
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if monitor.running {
		return
	}
	monitor.running = true
	monitor.done = make(chan struct{})
	monitor.previous = nil
	monitor.active = false
	go monitor.run(monitor.done)

	if monitor.logger != nil {
		monitor.logger.Info("network activity monitor started", map[string]string{
			"process":  monitor.processName,
			"interval": monitor.interval.String(),
		})
	}
}

// Stop halts probing; idempotent.
func (monitor *NetActivity) Stop() {
	if monitor == nil {
		return
	}
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if !monitor.running {
		return
	}
	monitor.running = false
	close(monitor.done)
}

func (monitor *NetActivity) run(done <-chan struct{}) {
	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			monitor.cycle()
		case <-done:
			return
		}
	}
}

func (monitor *NetActivity) cycle() {
	counts, err := monitor.probe()
	if err != nil {
		if monitor.logger != nil {
			monitor.logger.Warn("network probe failed", map[string]string{
				"error": err.Error(),
			})
		}
		return
	}

	monitor.mu.Lock()
	if !monitor.running {
		monitor.mu.Unlock()
		return
	}
	activeNow := detectActivity(monitor.previous, counts)
	monitor.previous = counts
	wasActive := monitor.active
	monitor.active = activeNow
	callback := monitor.onActivity
	monitor.mu.Unlock()

	if activeNow && !wasActive && monitor.logger != nil {
		monitor.logger.Info("network activity detected", map[string]string{
			"process": monitor.processName,
		})
	}
	if !activeNow && wasActive && monitor.logger != nil {
		monitor.logger.Info("network activity ended", map[string]string{
			"process": monitor.processName,
		})
	}
	if activeNow && callback != nil {
		callback("network activity: " + monitor.processName)
	}
}

// detectActivity compares two probe generations: new PIDs with open
// connections count as activity, as does any change in connection count for
// a PID seen before.
func detectActivity(previous, next map[int32]int) bool {
	for pid, count := range next {
		before, seen := previous[pid]
		if !seen {
			if count > 0 {
				return true
			}
			continue
		}
		if count != before {
			return true
		}
	}
	return false
}

func (monitor *NetActivity) probeProcesses() (map[int32]int, error) {
	processes, err := process.Processes()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(monitor.processName)
	counts := make(map[int32]int)
	for _, candidate := range processes {
		name, err := candidate.Name()
		if err != nil || !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		connections, err := gopsnet.ConnectionsPid("tcp", candidate.Pid)
		if err != nil {
			// Connection listing commonly needs privileges; skip quietly.
			continue
		}
		established := 0
		for _, connection := range connections {
			if connection.Status == "ESTABLISHED" {
				established++
			}
		}
		counts[candidate.Pid] = established
	}

	if monitor.logger != nil && monitor.logger.Enabled(logging.LevelDebug) {
		monitor.logger.Debug("network probe", map[string]string{
			"process": monitor.processName,
			"matched": strconv.Itoa(len(counts)),
		})
	}
	return counts, nil
}
