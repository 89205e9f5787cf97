package mqtt

import (
	"github.com/sweeney/garage-sensor/internal/logic"
)

// FakePublisher records everything published to it. A failing call records
// nothing. Not safe for concurrent use.
type FakePublisher struct {
	Events   []logic.Event
	Payloads [][]byte
	States   []string // retained state topic values

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	Commands []Command

	PublishError        error
	PublishSystemError  error
	PublishCommandError error

	Closed    bool
	Connected bool // returned by IsConnected
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}

	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	if state := stateMessage(event); state != nil {
		f.States = append(f.States, string(state))
	}
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}

	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

func (f *FakePublisher) PublishCommand(cmd Command) error {
	if f.PublishCommandError != nil {
		return f.PublishCommandError
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset returns the fake to its zero state.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
