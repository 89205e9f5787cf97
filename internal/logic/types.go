// Package logic contains pure business logic for garage door contact sensing.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// DoorState is the reported current state of the door.
// Values follow the order used by the door controller (0=open ... 5=unknown).
type DoorState int

const (
	DoorOpen DoorState = iota
	DoorClosed
	DoorOpening
	DoorClosing
	DoorStopped
	DoorUnknown
)

func (s DoorState) String() string {
	switch s {
	case DoorOpen:
		return "OPEN"
	case DoorClosed:
		return "CLOSED"
	case DoorOpening:
		return "OPENING"
	case DoorClosing:
		return "CLOSING"
	case DoorStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ControlType is the configured door control protocol.
type ControlType int

const (
	ControlUnset      ControlType = 0
	ControlSecPlus1   ControlType = 1 // Security+ 1.0
	ControlSecPlus2   ControlType = 2 // Security+ 2.0
	ControlDryContact ControlType = 3
)

// ControlMode selects how the dry contacts are interpreted.
type ControlMode int

const (
	// ModeReedSwitch senses the door position directly from limit switches.
	ModeReedSwitch ControlMode = iota
	// ModeCommandButtons treats the contacts as open/close buttons on top of
	// a protocol-driven door controller.
	ModeCommandButtons
)

func (m ControlMode) String() string {
	switch m {
	case ModeReedSwitch:
		return "REED_SWITCH"
	case ModeCommandButtons:
		return "COMMAND_BUTTONS"
	default:
		return "UNKNOWN"
	}
}

// ResolveMode derives the control mode. An unset control type falls back to
// the security protocol type.
func ResolveMode(control, security ControlType) ControlMode {
	if control == ControlUnset {
		control = security
	}
	if control == ControlDryContact {
		return ModeReedSwitch
	}
	return ModeCommandButtons
}

// Config is read once by Setup.
type Config struct {
	OpenPin           int
	ClosePin          int
	Debounce          time.Duration
	ControlType       ControlType
	SecurityType      ControlType
	OpenCloseControls bool // use dry contacts as open/close buttons
}

// DoorStatus is the shared current-state cell owned by the door controller.
// Written only from the poll path.
type DoorStatus struct {
	State  DoorState
	Active bool // true once the state is known
}

// NewDoorStatus returns a cell in the UNKNOWN state.
func NewDoorStatus() *DoorStatus {
	return &DoorStatus{State: DoorUnknown}
}

// DoorController triggers door motion. Calls are fire-and-forget.
type DoorController interface {
	OpenDoor()
	CloseDoor()
}

// EventType identifies what a poll observed or did.
type EventType string

const (
	EventStateChanged  EventType = "STATE_CHANGED"
	EventOpenPressed   EventType = "OPEN_PRESSED"
	EventClosePressed  EventType = "CLOSE_PRESSED"
	EventOpenReleased  EventType = "OPEN_RELEASED"
	EventCloseReleased EventType = "CLOSE_RELEASED"
	EventOpenCommand   EventType = "OPEN_COMMAND"
	EventCloseCommand  EventType = "CLOSE_COMMAND"
)

// Event is a diagnostic observation to be published.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	State       DoorState
	OpenSwitch  bool // debounced, true = active
	CloseSwitch bool
}

// Sample is a single raw reading of both pins.
type Sample struct {
	OpenHigh  bool // raw electrical level, true = high
	CloseHigh bool
	Time      time.Time
}

// EventCounts tracks the number of each kind of event since startup.
type EventCounts struct {
	Opened        int
	Closed        int
	OpenPresses   int
	ClosePresses  int
	OpenCommands  int
	CloseCommands int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
