package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pi-helper.env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestReadNetworkInfoFromFile(t *testing.T) {
	path := writeEnvFile(t, strings.Join([]string{
		"NETWORK_TYPE=wifi",
		"NETWORK_IP=192.168.1.100",
		"NETWORK_STATUS=connected",
		"NETWORK_GATEWAY=192.168.1.1",
		"NETWORK_WIFI_STATUS=connected",
		`NETWORK_WIFI_SSID="My Network"`,
	}, "\n"))

	info := readNetworkInfo(path)
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "My Network",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoFileWinsOverEnv(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.1")
	path := writeEnvFile(t, "NETWORK_STATUS=disconnected\n")

	info := readNetworkInfo(path)
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Status != "disconnected" {
		t.Errorf("Status: got %q, want disconnected", info.Status)
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestReadNetworkInfoFallsBackToEnv(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "ethernet")

	info := readNetworkInfo(filepath.Join(t.TempDir(), "missing.env"))
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo from environment")
	}
	if info.Status != "connected" || info.Type != "ethernet" {
		t.Errorf("got %+v", *info)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")

	if info := readNetworkInfo(""); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestContactString(t *testing.T) {
	if got := contactString(false); got != "ENGAGED" {
		t.Errorf("low: got %q, want ENGAGED", got)
	}
	if got := contactString(true); got != "RELEASED" {
		t.Errorf("high: got %q, want RELEASED", got)
	}
}

// --- loop tests ---

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	testStep     = 10 * time.Millisecond
	testDebounce = 50 * time.Millisecond
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from the loop goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample gpio.Sample, n int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

func concat(parts ...[]gpio.Sample) []gpio.Sample {
	var out []gpio.Sample
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (bool, bool, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return true, true, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

func reedConfig() logic.Config {
	return logic.Config{
		OpenPin:     gpio.DefaultPinOpen,
		ClosePin:    gpio.DefaultPinClose,
		Debounce:    testDebounce,
		ControlType: logic.ControlDryContact,
	}
}

func buttonConfig() logic.Config {
	return logic.Config{
		OpenPin:           gpio.DefaultPinOpen,
		ClosePin:          gpio.DefaultPinClose,
		Debounce:          testDebounce,
		ControlType:       logic.ControlSecPlus2,
		OpenCloseControls: true,
	}
}

// newTestLoop wires a loop the same way run does, with fakes at the edges.
func newTestLoop(t *testing.T, reader gpio.Reader, pub *mqtt.FakePublisher, cfg logic.Config, heartbeat, step time.Duration) *loop {
	t.Helper()
	door := logic.NewDoorStatus()
	dc := logic.NewDryContact(mqtt.NewDoorCommander(pub), door, testStart)
	dc.Setup(cfg)

	tracker := status.NewTracker(testStart, status.Config{
		PollMs:     step.Milliseconds(),
		DebounceMs: cfg.Debounce.Milliseconds(),
		PinOpen:    cfg.OpenPin,
		PinClose:   cfg.ClosePin,
	})
	tracker.SetMode(dc.Mode())

	return &loop{
		reader:     reader,
		publisher:  pub,
		mqttStatus: pub,
		tracker:    tracker,
		dc:         dc,
		door:       door,
		heartbeat:  heartbeat,
		networkEnv: filepath.Join(t.TempDir(), "missing.env"),
		now:        fakeClock(testStart, step),
	}
}

// runLoop drives the loop for nTicks and then delivers signal, returning the
// loop's error.
func runLoop(t *testing.T, l *loop, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run(tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func systemEvents(pub *mqtt.FakePublisher, name string) []mqtt.SystemEvent {
	var out []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == name {
			out = append(out, se)
		}
	}
	return out
}

func TestLoopNoEventsWhileReleased(t *testing.T) {
	samples := repeat(gpio.Engaged(false, false), 10)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 door events, got %d", len(pub.Events))
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", pub.SystemEvents)
	}
	if got := l.tracker.Snapshot().State; got != logic.DoorUnknown {
		t.Errorf("State: got %s, want UNKNOWN", got)
	}
}

func TestLoopReedStateChange(t *testing.T) {
	samples := repeat(gpio.Engaged(false, true), 8)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 door event, got %d", len(pub.Events))
	}
	e := pub.Events[0]
	if e.Type != logic.EventStateChanged || e.State != logic.DoorClosed {
		t.Errorf("got %s/%s, want STATE_CHANGED/CLOSED", e.Type, e.State)
	}
	if !e.Timestamp.Equal(testStart.Add(testDebounce)) {
		t.Errorf("Timestamp: got %v, want %v", e.Timestamp, testStart.Add(testDebounce))
	}
	if !reflect.DeepEqual(pub.States, []string{"CLOSED"}) {
		t.Errorf("States: got %v, want [CLOSED]", pub.States)
	}
	if len(pub.Commands) != 0 {
		t.Errorf("reed mode should not send commands, got %v", pub.Commands)
	}

	snap := l.tracker.Snapshot()
	if snap.State != logic.DoorClosed || !snap.Active || !snap.Ready {
		t.Errorf("snapshot: got state=%s active=%v ready=%v", snap.State, snap.Active, snap.Ready)
	}
	if !snap.CloseSwitch || snap.OpenSwitch {
		t.Errorf("switches: got open=%v close=%v", snap.OpenSwitch, snap.CloseSwitch)
	}
	if snap.Counts.Closed != 1 {
		t.Errorf("Counts.Closed: got %d, want 1", snap.Counts.Closed)
	}
	if !snap.LastChange.Equal(testStart.Add(testDebounce)) {
		t.Errorf("LastChange: got %v", snap.LastChange)
	}
}

func TestLoopReedTravel(t *testing.T) {
	samples := concat(
		repeat(gpio.Engaged(false, true), 8),  // closed
		repeat(gpio.Engaged(false, false), 8), // travelling
		repeat(gpio.Engaged(true, false), 8),  // open
	)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if !reflect.DeepEqual(pub.States, []string{"CLOSED", "OPEN"}) {
		t.Errorf("States: got %v, want [CLOSED OPEN]", pub.States)
	}
}

func TestLoopCommandButtons(t *testing.T) {
	samples := concat(
		repeat(gpio.Engaged(true, false), 8),
		repeat(gpio.Engaged(false, false), 8),
		repeat(gpio.Engaged(false, true), 8),
	)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, buttonConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	wantCmds := []mqtt.Command{mqtt.CommandOpen, mqtt.CommandClose}
	if !reflect.DeepEqual(pub.Commands, wantCmds) {
		t.Errorf("Commands: got %v, want %v", pub.Commands, wantCmds)
	}

	var types []logic.EventType
	for _, e := range pub.Events {
		types = append(types, e.Type)
	}
	wantTypes := []logic.EventType{
		logic.EventOpenPressed, logic.EventOpenCommand,
		logic.EventOpenReleased,
		logic.EventClosePressed, logic.EventCloseCommand,
	}
	if !reflect.DeepEqual(types, wantTypes) {
		t.Errorf("events: got %v, want %v", types, wantTypes)
	}
	if len(pub.States) != 0 {
		t.Errorf("command mode should not publish state, got %v", pub.States)
	}
	if got := l.tracker.Snapshot().Mode; got != logic.ModeCommandButtons {
		t.Errorf("Mode: got %s, want COMMAND_BUTTONS", got)
	}
}

func TestLoopBounceRejection(t *testing.T) {
	// A 20ms blip is shorter than debounce, so no event should fire
	samples := concat(
		repeat(gpio.Engaged(false, false), 3),
		repeat(gpio.Engaged(false, true), 2),
		repeat(gpio.Engaged(false, false), 8),
	)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 door events (bounce rejected), got %d", len(pub.Events))
	}
}

func TestLoopGPIOReadError(t *testing.T) {
	// Reads 2 and 3 fail. The loop keeps going and still sees the door close.
	inner := gpio.NewFakeReader(repeat(gpio.Engaged(false, true), 1))
	reader := &faultReader{inner: inner, faultStart: 2, faultEnd: 4}
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, reader, pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 1 || pub.Events[0].State != logic.DoorClosed {
		t.Errorf("expected CLOSED after read errors, got %+v", pub.Events)
	}
	if len(systemEvents(pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN system event after GPIO errors")
	}
}

func TestLoopPublishError(t *testing.T) {
	samples := repeat(gpio.Engaged(true, false), 8)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = fmt.Errorf("broker unavailable")
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(pub.Events))
	}
	// The local view is unaffected by the broker
	if got := l.tracker.Snapshot().State; got != logic.DoorOpen {
		t.Errorf("State: got %s, want OPEN", got)
	}
	if len(systemEvents(pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestLoopShutdownSignals(t *testing.T) {
	tests := []struct {
		signal os.Signal
		want   string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			samples := repeat(gpio.Engaged(false, true), 8)
			pub := mqtt.NewFakePublisher()
			pub.Connected = true
			l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

			if err := runLoop(t, l, len(samples), tt.signal); err != nil {
				t.Fatalf("loop returned error: %v", err)
			}

			shutdowns := systemEvents(pub, "SHUTDOWN")
			if len(shutdowns) != 1 {
				t.Fatalf("expected 1 SHUTDOWN, got %d", len(shutdowns))
			}
			se := shutdowns[0]
			if se.Reason != tt.want {
				t.Errorf("Reason: got %q, want %q", se.Reason, tt.want)
			}
			if !se.Retained {
				t.Error("SHUTDOWN should be retained")
			}
			payload := string(se.RawPayload)
			for _, want := range []string{`"event":"SHUTDOWN"`, `"reason":"` + tt.want + `"`, `"door":"CLOSED"`} {
				if !strings.Contains(payload, want) {
					t.Errorf("payload missing %s:\n%s", want, payload)
				}
			}
			if !l.tracker.Snapshot().MQTTConnected {
				t.Error("expected MQTTConnected from publisher")
			}
		})
	}
}

func TestLoopHeartbeat(t *testing.T) {
	// Ticks at 0, 5, 10 and 15 minutes. The 15 minute tick is the first one
	// a full interval after startup.
	samples := repeat(gpio.Engaged(false, false), 4)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 15*time.Minute, 5*time.Minute)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	heartbeats := systemEvents(pub, "HEARTBEAT")
	if len(heartbeats) != 1 {
		t.Fatalf("expected 1 HEARTBEAT event, got %d", len(heartbeats))
	}
	hb := heartbeats[0]
	if !hb.Timestamp.Equal(testStart.Add(15 * time.Minute)) {
		t.Errorf("Timestamp: got %v", hb.Timestamp)
	}
	if hb.Retained {
		t.Error("HEARTBEAT should not be retained")
	}
	if !strings.Contains(string(hb.RawPayload), `"event":"HEARTBEAT"`) {
		t.Errorf("payload missing event:\n%s", hb.RawPayload)
	}
	if len(systemEvents(pub, "SHUTDOWN")) != 1 {
		t.Error("expected 1 SHUTDOWN event")
	}
}

func TestLoopHeartbeatDisabled(t *testing.T) {
	samples := repeat(gpio.Engaged(false, false), 4)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, time.Hour)

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if n := len(systemEvents(pub, "HEARTBEAT")); n != 0 {
		t.Errorf("expected no heartbeats, got %d", n)
	}
}

func TestLoopReportsDoorStatusCell(t *testing.T) {
	samples := repeat(gpio.Engaged(false, false), 3)
	pub := mqtt.NewFakePublisher()
	l := newTestLoop(t, gpio.NewFakeReader(samples), pub, reedConfig(), 0, testStep)

	// Another writer sets a state without marking the door known
	l.door.State = logic.DoorOpening

	if err := runLoop(t, l, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	snap := l.tracker.Snapshot()
	if snap.State != logic.DoorOpening {
		t.Errorf("State: got %s, want OPENING", snap.State)
	}
	if snap.Active {
		t.Error("Active should come from the status cell, got true")
	}

	// A reconciled state sets the cell's flag, and the view follows it
	l.door.Active = true
	l.poll(testStart.Add(time.Second))
	if !l.tracker.Snapshot().Active {
		t.Error("expected Active=true after the cell was marked active")
	}
}
