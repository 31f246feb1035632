// Package monitor wires the change-detection core to its collaborators: it
// selects a watch strategy, relays coalesced events to the alert player and
// the event bus, and hosts the optional process network-activity prober.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"chime/internal/config"
	"chime/internal/event"
	"chime/internal/logging"
	"chime/internal/watch"
)

// AlertPlayer is the audible-alert collaborator. The controller only fires
// the trigger; it never inspects playback state beyond rate limiting.
type AlertPlayer interface {
	Play()
	Stop()
	Playing() bool
}

// Controller owns exactly one active watch strategy and relays its output.
type Controller struct {
	cfg    config.Config
	logger *logging.Logger
	bus    *event.Bus[Event]
	player AlertPlayer

	mu        sync.Mutex
	running   bool
	watcher   watch.Watcher
	lastAlert time.Time
}

func NewController(cfg config.Config, logger *logging.Logger, bus *event.Bus[Event], player AlertPlayer) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		player: player,
	}
}

// Start builds the configured strategy and begins watching. With the events
// strategy, a subscription failure at startup falls back to polling instead
// of failing. Calling Start while running is a no-op.
func (controller *Controller) Start() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.running {
		return nil
	}

	watcher, err := controller.buildWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		if controller.cfg.Strategy != config.StrategyEvents {
			return err
		}
		controller.logger.Warn("falling back to polling watcher", map[string]string{
			"error": err.Error(),
		})
		watcher, err = controller.buildPollWatcher()
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
	}

	controller.watcher = watcher
	controller.running = true
	return nil
}

// Stop tears down the active strategy before anything else so no alert can
// fire once it returns. Safe to call when idle.
//
// The watcher is stopped outside the controller lock: a coalescer flush may
// be invoking handleChange concurrently, and that path takes the controller
// lock while the watcher teardown takes the coalescer's.
func (controller *Controller) Stop() {
	controller.mu.Lock()
	if !controller.running {
		controller.mu.Unlock()
		return
	}
	controller.running = false
	watcher := controller.watcher
	controller.watcher = nil
	controller.mu.Unlock()

	watcher.Stop()
	if controller.player != nil {
		controller.player.Stop()
	}
}

// Metrics exposes the active watcher's counters.
func (controller *Controller) Metrics() watch.Metrics {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.watcher == nil {
		return watch.Metrics{}
	}
	return controller.watcher.Metrics()
}

func (controller *Controller) buildWatcher() (watch.Watcher, error) {
	switch controller.cfg.Strategy {
	case config.StrategyPoll:
		return controller.buildPollWatcher()
	case config.StrategyEvents:
		return watch.NewStreamWatcher(
			controller.cfg.Paths,
			controller.cfg.Extensions,
			controller.handleChange,
			controller.logger,
			watch.StreamOptions{
				QuietPeriod: controller.cfg.QuietPeriod(),
				MaxWindow:   controller.cfg.MaxWindow(),
			},
		)
	default:
		return nil, fmt.Errorf("unknown strategy %q", controller.cfg.Strategy)
	}
}

// buildPollWatcher polls the first configured root; polling watches exactly
// one tree per instance.
func (controller *Controller) buildPollWatcher() (watch.Watcher, error) {
	return watch.NewPollWatcher(
		controller.cfg.Paths[0],
		controller.cfg.PollInterval(),
		controller.cfg.Extensions,
		controller.handleChange,
		controller.logger,
		watch.PollOptions{
			QuietPeriod: controller.cfg.QuietPeriod(),
			MaxWindow:   controller.cfg.MaxWindow(),
		},
	)
}

func (controller *Controller) handleChange(changed watch.Event) {
	controller.logger.Info("file change detected", map[string]string{
		"path": changed.Path,
		"op":   changed.Op.String(),
	})
	controller.publish(Event{
		Type:      EventTypeFileChanged,
		Path:      changed.Path,
		Timestamp: time.Now().UTC(),
	})
	controller.maybeAlert("file change: " + changed.Path)
}

// HandleNetworkActivity lets the network prober share the alert pipeline.
func (controller *Controller) HandleNetworkActivity(detail string) {
	controller.publish(Event{
		Type:      EventTypeNetworkActivity,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	controller.maybeAlert(detail)
}

// maybeAlert fires the player unless an alert ran within the configured
// interval. The rate limit keeps a noisy burst of changes from turning the
// alert into a drone.
func (controller *Controller) maybeAlert(detail string) {
	if controller.player == nil {
		return
	}

	controller.mu.Lock()
	if !controller.running {
		controller.mu.Unlock()
		return
	}
	now := time.Now()
	if !controller.lastAlert.IsZero() && now.Sub(controller.lastAlert) < controller.cfg.AlertInterval() {
		controller.mu.Unlock()
		return
	}
	controller.lastAlert = now
	controller.mu.Unlock()

	controller.player.Play()
	controller.publish(Event{
		Type:      EventTypeAlertTriggered,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

func (controller *Controller) publish(event Event) {
	if controller.bus == nil {
		return
	}
	controller.bus.Publish(event)
}
