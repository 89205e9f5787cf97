package mqtt

import "log"

// bufferedMsg is a serialized message waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue is a bounded FIFO of messages published while disconnected.
// A retained message replaces any older retained message on the same topic,
// since the broker would only keep the newest one anyway. When the queue is
// full the oldest message is dropped. Not safe for concurrent use.
type offlineQueue struct {
	msgs    []bufferedMsg
	limit   int
	dropped int // since the last drain
}

func newOfflineQueue(limit int) *offlineQueue {
	return &offlineQueue{limit: limit}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range q.msgs {
			if m.retained && m.topic == msg.topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}

	if len(q.msgs) == q.limit {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest", q.limit)
		}
		q.dropped++
		q.msgs = q.msgs[1:]
	}
	q.msgs = append(q.msgs, msg)
}

// drain returns the queued messages oldest first and empties the queue.
func (q *offlineQueue) drain() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	if q.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", q.dropped)
	}

	out := q.msgs
	q.msgs = nil
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
