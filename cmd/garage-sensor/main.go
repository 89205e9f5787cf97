// Command garage-sensor monitors garage door dry contacts and publishes door
// state changes and open/close requests to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/status"
	"github.com/sweeney/garage-sensor/internal/web"
)

type options struct {
	poll         time.Duration
	debounce     time.Duration
	broker       string
	heartbeat    time.Duration
	pinOpen      int
	pinClose     int
	controlType  int
	securityType int
	dcOpenClose  bool
	printState   bool
	httpAddr     string
	networkEnv   string
}

func main() {
	var o options
	flag.DurationVar(&o.poll, "poll", 10*time.Millisecond, "GPIO polling interval (must be shorter than debounce)")
	flag.DurationVar(&o.debounce, "debounce", 50*time.Millisecond, "Debounce duration")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.IntVar(&o.pinOpen, "pin-open", gpio.DefaultPinOpen, "BCM pin number for the open contact")
	flag.IntVar(&o.pinClose, "pin-close", gpio.DefaultPinClose, "BCM pin number for the close contact")
	flag.IntVar(&o.controlType, "control-type", 0, "Door control type: 1=Sec+1.0 2=Sec+2.0 3=dry contact (0 derives from -security-type)")
	flag.IntVar(&o.securityType, "security-type", int(logic.ControlSecPlus2), "Configured security protocol type")
	flag.BoolVar(&o.dcOpenClose, "dc-open-close", false, "Use dry contacts as open/close buttons when not in dry contact mode")
	flag.BoolVar(&o.printState, "print-state", false, "Print current contact levels and exit")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.networkEnv, "network-env", "/run/pi-helper.env", "Env file with network status written by pi-helper")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	if o.debounce > 0 && o.poll >= o.debounce {
		log.Printf("warning: poll interval %v is not shorter than debounce %v", o.poll, o.debounce)
	}

	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(o.pinOpen, o.pinClose)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Print state mode
	if o.printState {
		openHigh, closeHigh, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("OPEN: %s, CLOSE: %s\n", contactString(openHigh), contactString(closeHigh))
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:            o.poll.Milliseconds(),
		DebounceMs:        o.debounce.Milliseconds(),
		HeartbeatMs:       o.heartbeat.Milliseconds(),
		Broker:            o.broker,
		HTTPAddr:          o.httpAddr,
		PinOpen:           o.pinOpen,
		PinClose:          o.pinClose,
		OpenCloseControls: o.dcOpenClose,
	})
	if net := readNetworkInfo(o.networkEnv); net != nil {
		tracker.SetNetwork(net)
	}

	door := logic.NewDoorStatus()
	dc := logic.NewDryContact(mqtt.NewDoorCommander(publisher), door, startTime)
	dc.Setup(logic.Config{
		OpenPin:           o.pinOpen,
		ClosePin:          o.pinClose,
		Debounce:          o.debounce,
		ControlType:       logic.ControlType(o.controlType),
		SecurityType:      logic.ControlType(o.securityType),
		OpenCloseControls: o.dcOpenClose,
	})
	tracker.SetMode(dc.Mode())

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: poll=%v debounce=%v broker=%s heartbeat=%v mode=%s", o.poll, o.debounce, o.broker, o.heartbeat, dc.Mode())

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		reader:     gpioReader,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		dc:         dc,
		door:       door,
		heartbeat:  o.heartbeat,
		networkEnv: o.networkEnv,
		now:        time.Now,
	}
	return l.run(ticker.C, sigCh)
}

// loop holds the collaborators of the poll loop.
type loop struct {
	reader     gpio.Reader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	dc         *logic.DryContact
	door       *logic.DoorStatus // shared cell the dry contact logic writes
	heartbeat  time.Duration
	networkEnv string
	now        func() time.Time
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refreshConnection()
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			l.poll(l.now())
		}
	}
}

// poll reads the contacts once and handles everything that follows from it.
func (l *loop) poll(t time.Time) {
	openHigh, closeHigh, err := l.reader.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
		return
	}

	events := l.dc.Poll(logic.Sample{
		OpenHigh:  openHigh,
		CloseHigh: closeHigh,
		Time:      t,
	})

	for _, event := range events {
		log.Printf("event: %s (door=%s open=%v close=%v)", event.Type, event.State, event.OpenSwitch, event.CloseSwitch)
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}

	if l.tracker != nil {
		l.tracker.Update(l.doorView(), t)
		l.refreshConnection()
	}

	if hbData := l.dc.CheckHeartbeat(t, l.heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v opened=%d closed=%d open_cmds=%d close_cmds=%d",
			hbData.Uptime, hbData.Counts.Opened, hbData.Counts.Closed, hbData.Counts.OpenCommands, hbData.Counts.CloseCommands)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(l.networkEnv); net != nil {
				l.tracker.SetNetwork(net)
			}
			snap := l.tracker.Snapshot()
			hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

func (l *loop) doorView() status.DoorView {
	open, closed := l.dc.SwitchStates()
	return status.DoorView{
		State:       l.door.State,
		Active:      l.door.Active,
		Ready:       l.dc.IsSetup(),
		OpenSwitch:  open,
		CloseSwitch: closed,
		Counts:      l.dc.EventCountsSnapshot(),
	}
}

func (l *loop) refreshConnection() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo reads pi-helper's env file. If the file cannot be read the
// process environment is used instead. Returns nil when no status is known.
func readNetworkInfo(path string) *status.NetworkInfo {
	get := os.Getenv
	if path != "" {
		if env, err := godotenv.Read(path); err == nil {
			get = func(key string) string { return env[key] }
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// contactString renders a raw level of a pulled-up contact.
func contactString(high bool) string {
	if high {
		return "RELEASED"
	}
	return "ENGAGED"
}
