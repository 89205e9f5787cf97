package logic

import "time"

// Switch debounces a single dry-contact input and reports edges.
// It is purely sampled: Advance must be called faster than the debounce interval.
type Switch struct {
	pin       int
	activeLow bool
	debounce  time.Duration

	// Current stable (debounced) logical state
	active bool
	// Last raw logical sample
	raw bool
	// Time when raw last changed
	changedAt time.Time

	pressed     bool
	released    bool
	longStopped bool
	held        bool // a press was reported and no release yet
}

// NewSwitch creates a switch that starts inactive.
func NewSwitch(pin int, activeLow bool, debounce time.Duration) *Switch {
	return &Switch{
		pin:       pin,
		activeLow: activeLow,
		debounce:  debounce,
	}
}

// Advance feeds one raw electrical sample taken at now.
func (s *Switch) Advance(high bool, now time.Time) {
	level := high != s.activeLow

	if level != s.raw {
		// Raw level changed, restart the timer
		s.raw = level
		s.changedAt = now
	}

	if s.raw == s.active {
		return
	}

	if now.Sub(s.changedAt) < s.debounce {
		return
	}

	s.active = s.raw
	if s.active {
		s.pressed = true
		s.held = true
		return
	}
	s.released = true
	if s.held {
		s.longStopped = true
		s.held = false
	}
}

// Active returns the debounced logical state.
func (s *Switch) Active() bool {
	return s.active
}

// Pressed reports an inactive->active edge since the last call.
func (s *Switch) Pressed() bool {
	p := s.pressed
	s.pressed = false
	return p
}

// Released reports an active->inactive edge since the last call.
func (s *Switch) Released() bool {
	r := s.released
	s.released = false
	return r
}

// LongPressStopped reports a release that followed a press. There is no
// minimum hold time: contacts are held, not tapped.
func (s *Switch) LongPressStopped() bool {
	l := s.longStopped
	s.longStopped = false
	return l
}

// Pin returns the pin identifier.
func (s *Switch) Pin() int { return s.pin }

// ActiveLow reports the polarity.
func (s *Switch) ActiveLow() bool { return s.activeLow }

// Debounce returns the debounce interval.
func (s *Switch) Debounce() time.Duration { return s.debounce }
