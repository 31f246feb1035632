package monitor

import "time"

const (
	EventTypeFileChanged     = "file_changed"
	EventTypeAlertTriggered  = "alert_triggered"
	EventTypeNetworkActivity = "network_activity"
)

// Event is published on the monitor bus for every observable occurrence:
// coalesced file changes, alert triggers, and network-activity transitions.
type Event struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
