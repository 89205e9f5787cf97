package mqtt

import "log"

// DoorCommander forwards open/close requests to the door controller over MQTT.
// It implements logic.DoorController; failures are logged, not returned.
type DoorCommander struct {
	publisher Publisher
}

// NewDoorCommander creates a DoorCommander that publishes through p.
func NewDoorCommander(p Publisher) *DoorCommander {
	return &DoorCommander{publisher: p}
}

// OpenDoor requests the door to open.
func (c *DoorCommander) OpenDoor() {
	c.send(CommandOpen)
}

// CloseDoor requests the door to close.
func (c *DoorCommander) CloseDoor() {
	c.send(CommandClose)
}

func (c *DoorCommander) send(cmd Command) {
	if err := c.publisher.PublishCommand(cmd); err != nil {
		log.Printf("door command %s failed: %v", cmd, err)
		return
	}
	log.Printf("door command: %s", cmd)
}
