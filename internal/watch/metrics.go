package watch

import "sync/atomic"

// Metrics is a point-in-time snapshot of watcher counters.
type Metrics struct {
	SignalsObserved uint64
	SignalsFiltered uint64
	EventsDelivered uint64
	Errors          uint64
}

type counters struct {
	signalsObserved atomic.Uint64
	signalsFiltered atomic.Uint64
	eventsDelivered atomic.Uint64
	errors          atomic.Uint64
}

func (c *counters) snapshot() Metrics {
	if c == nil {
		return Metrics{}
	}
	return Metrics{
		SignalsObserved: c.signalsObserved.Load(),
		SignalsFiltered: c.signalsFiltered.Load(),
		EventsDelivered: c.eventsDelivered.Load(),
		Errors:          c.errors.Load(),
	}
}
