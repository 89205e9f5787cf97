// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/garage-sensor/internal/logic"
)

// Topic is the MQTT topic for door events.
const Topic = "garage/door/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garage/door/sensor/system"

// TopicState carries the retained plain-text door state.
const TopicState = "garage/door/sensor/state"

// TopicCommand is where open/close requests for the door controller go.
const TopicCommand = "garage/door/command"

// Command is a door motion request.
type Command string

const (
	CommandOpen  Command = "OPEN"
	CommandClose Command = "CLOSE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishCommand sends a motion request to the door controller.
	PublishCommand(cmd Command) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door event details.
type DoorPayload struct {
	ID          string      `json:"id"`
	Timestamp   string      `json:"timestamp"`
	Event       string      `json:"event"`
	State       string      `json:"state"`
	OpenSwitch  SwitchState `json:"open_switch"`
	CloseSwitch SwitchState `json:"close_switch"`
}

// SwitchState represents a single contact's debounced state.
type SwitchState struct {
	Active bool `json:"active"`
}

// FormatPayload creates the JSON payload for a door event.
// Each payload carries a fresh id so replays from the offline queue can be
// deduplicated by consumers.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Door: DoorPayload{
			ID:          uuid.NewString(),
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(event.Type),
			State:       event.State.String(),
			OpenSwitch:  SwitchState{Active: event.OpenSwitch},
			CloseSwitch: SwitchState{Active: event.CloseSwitch},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// stateMessage returns the retained state topic payload for event, or nil if
// the event does not change the door state.
func stateMessage(event logic.Event) []byte {
	if event.Type != logic.EventStateChanged {
		return nil
	}
	return []byte(event.State.String())
}
