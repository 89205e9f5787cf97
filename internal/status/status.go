// Package status provides a thread-safe status tracker for the garage-sensor daemon.
// It is read by the HTTP handlers and by MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/garage-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs            int64
	DebounceMs        int64
	HeartbeatMs       int64
	Broker            string
	HTTPAddr          string
	PinOpen           int
	PinClose          int
	OpenCloseControls bool
}

// DoorView is what the poll loop knows about the door on a given tick.
type DoorView struct {
	State       logic.DoorState
	Active      bool
	Ready       bool // dry contact setup has completed
	OpenSwitch  bool
	CloseSwitch bool
	Counts      logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	DoorView
	Mode          logic.ControlMode
	LastChange    time.Time // zero until the door state first changes
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			DoorView:  DoorView{State: logic.DoorUnknown},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the door view observed at now.
// Called from the poll loop on every tick.
func (t *Tracker) Update(v DoorView, now time.Time) {
	t.mu.Lock()
	if v.State != t.snap.State {
		t.snap.LastChange = now
	}
	t.snap.DoorView = v
	t.mu.Unlock()
}

// SetMode records the resolved control mode.
func (t *Tracker) SetMode(mode logic.ControlMode) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
