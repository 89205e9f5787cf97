package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/garage-sensor/internal/logic"
)

// offlineLimit is the number of messages kept while disconnected.
const offlineLimit = 256

// ErrNotConnected is returned for messages that are not worth queueing.
var ErrNotConnected = errors.New("mqtt: not connected")

// RealPublisher publishes to an actual MQTT broker.
// Events and system messages published while disconnected are queued and
// replayed in order once the connection is restored. Door commands are not.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu      sync.Mutex
	offline *offlineQueue
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker marks the sensor OFFLINE on the system topic if it disappears.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:   Topic,
		offline: newOfflineQueue(offlineLimit),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("garage-sensor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays anything queued while offline. It drains until the queue
// stays empty, since send may queue more while a replay is in flight.
func (p *RealPublisher) onConnect(c paho.Client) {
	replayed := 0
	for {
		p.mu.Lock()
		msgs := p.offline.drain()
		p.mu.Unlock()
		if len(msgs) == 0 {
			break
		}

		log.Printf("mqtt: replaying %d queued messages", len(msgs))
		for _, m := range msgs {
			token := c.Publish(m.topic, m.qos, m.retained, m.payload)
			if !token.WaitTimeout(5 * time.Second) {
				log.Printf("mqtt: replay to %s timed out", m.topic)
				continue
			}
			if err := token.Error(); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
		replayed += len(msgs)
	}
	log.Printf("mqtt: connected (%d replayed)", replayed)
}

// send publishes or queues a message depending on connection state. The
// connection check and the push happen under one lock so a message cannot
// slip in behind a replay that has already drained the queue.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.offline.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.publish(topic, qos, retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Publish sends a door event to the MQTT broker. State changes are also
// written to the retained state topic.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(p.topic, 0, false, payload); err != nil {
		return err
	}

	if state := stateMessage(event); state != nil {
		if err := p.send(TopicState, 1, true, state); err != nil {
			return err
		}
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(TopicSystem, 1, event.Retained, payload)
}

// PublishCommand sends a door command. Commands are never queued: a press
// during an outage must not move the door once the broker is back.
func (p *RealPublisher) PublishCommand(cmd Command) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("command %s: %w", cmd, ErrNotConnected)
	}
	return p.publish(TopicCommand, 1, false, []byte(cmd))
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
