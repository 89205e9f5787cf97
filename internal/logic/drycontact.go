package logic

import (
	"log"
	"time"
)

// DryContact reconciles door state from the two contact inputs, or dispatches
// open/close commands from them, depending on the control mode.
// Not safe for concurrent use; the poll loop is the only caller.
type DryContact struct {
	door   DoorController
	status *DoorStatus

	setupDone         bool
	mode              ControlMode
	openCloseControls bool
	open              *Switch
	close             *Switch

	// Command latches
	openLatch  bool
	closeLatch bool

	lastReported DoorState

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDryContact creates an unconfigured reconciler writing to status.
// Poll has no effect until Setup is called.
func NewDryContact(door DoorController, status *DoorStatus, startTime time.Time) *DryContact {
	return &DryContact{
		door:          door,
		status:        status,
		lastReported:  DoorUnknown,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Setup reads the configuration and creates both switches (active-low, pulled
// up). It runs at most once; later calls return false and change nothing.
func (d *DryContact) Setup(cfg Config) bool {
	if d.setupDone {
		return false
	}

	log.Printf("drycontact: setting up")

	d.mode = ResolveMode(cfg.ControlType, cfg.SecurityType)
	d.openCloseControls = cfg.OpenCloseControls
	d.open = NewSwitch(cfg.OpenPin, true, cfg.Debounce)
	d.close = NewSwitch(cfg.ClosePin, true, cfg.Debounce)

	log.Printf("drycontact: mode=%s open_pin=%d close_pin=%d debounce=%v open_close_controls=%v",
		d.mode, cfg.OpenPin, cfg.ClosePin, cfg.Debounce, cfg.OpenCloseControls)

	d.setupDone = true
	return true
}

// Poll advances both switches with the sample and then runs the mode policy.
// Returns the events observed during this poll.
func (d *DryContact) Poll(s Sample) []Event {
	if !d.setupDone {
		return nil
	}

	d.open.Advance(s.OpenHigh, s.Time)
	d.close.Advance(s.CloseHigh, s.Time)

	switch d.mode {
	case ModeReedSwitch:
		return d.reconcile(s.Time)
	case ModeCommandButtons:
		if !d.openCloseControls {
			return nil
		}
		return d.dispatch(s.Time)
	default:
		return nil
	}
}

// reconcile computes the door state from the limit switches.
// Open wins when both are active; neither active keeps the last state.
func (d *DryContact) reconcile(now time.Time) []Event {
	newState := d.lastReported
	if d.open.Active() {
		newState = DoorOpen
	} else if d.close.Active() {
		newState = DoorClosed
	}

	if newState == d.lastReported {
		return nil
	}

	log.Printf("drycontact: door state changed to %s", newState)
	d.lastReported = newState
	d.status.State = newState
	d.status.Active = true

	switch newState {
	case DoorOpen:
		d.eventCounts.Opened++
	case DoorClosed:
		d.eventCounts.Closed++
	}

	return []Event{d.event(EventStateChanged, now)}
}

// dispatch latches press edges and issues each latched command once.
// Both commands may fire in the same poll, open first.
func (d *DryContact) dispatch(now time.Time) []Event {
	var events []Event

	if d.open.Pressed() {
		d.openLatch = true
		d.eventCounts.OpenPresses++
		log.Printf("drycontact: open switch pressed")
		events = append(events, d.event(EventOpenPressed, now))
	}
	if d.close.Pressed() {
		d.closeLatch = true
		d.eventCounts.ClosePresses++
		log.Printf("drycontact: close switch pressed")
		events = append(events, d.event(EventClosePressed, now))
	}

	// Releases only reset the latch, they never move the door
	if d.open.LongPressStopped() {
		d.openLatch = false
		log.Printf("drycontact: open switch released")
		events = append(events, d.event(EventOpenReleased, now))
	}
	if d.close.LongPressStopped() {
		d.closeLatch = false
		log.Printf("drycontact: close switch released")
		events = append(events, d.event(EventCloseReleased, now))
	}

	if d.openLatch {
		d.door.OpenDoor()
		d.openLatch = false
		d.eventCounts.OpenCommands++
		events = append(events, d.event(EventOpenCommand, now))
	}
	if d.closeLatch {
		d.door.CloseDoor()
		d.closeLatch = false
		d.eventCounts.CloseCommands++
		events = append(events, d.event(EventCloseCommand, now))
	}

	return events
}

func (d *DryContact) event(t EventType, now time.Time) Event {
	return Event{
		Timestamp:   now,
		Type:        t,
		State:       d.status.State,
		OpenSwitch:  d.open.Active(),
		CloseSwitch: d.close.Active(),
	}
}

// IsSetup returns whether Setup has run.
func (d *DryContact) IsSetup() bool {
	return d.setupDone
}

// Mode returns the resolved control mode. Meaningful only after Setup.
func (d *DryContact) Mode() ControlMode {
	return d.mode
}

// CurrentState returns the shared door state.
func (d *DryContact) CurrentState() DoorState {
	return d.status.State
}

// SwitchStates returns the debounced open and close switch levels.
func (d *DryContact) SwitchStates() (open, close bool) {
	if !d.setupDone {
		return false, false
	}
	return d.open.Active(), d.close.Active()
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *DryContact) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil before Setup, if the interval has
// not elapsed, or if interval is <= 0 (disabled).
func (d *DryContact) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.setupDone {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
