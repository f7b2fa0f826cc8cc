// Package eventbus implements the Event Bus (C7): per-job
// publish/subscribe of JSON-shaped typed messages, with no
// late-subscriber delivery guarantee (the dispatcher handles backfill
// by reading the Job Store before subscribing).
//
// Grounded on internal/feedback/events.go's typed-Event /
// buffered-channel / drop-on-full-with-logrus-warn style, restructured
// from a single process-wide bus (filtered by a SessionID field) into
// per-job subscriber maps the way voicetyped's pkg/events/publisher.go
// keys its Subscribe/Unsubscribe channel map by subscriber id.
package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType names the shape of an event's payload.
type EventType string

const (
	EventTranscriptSegment EventType = "transcript_segment"
	EventFinalSummary      EventType = "final_summary"
	EventError             EventType = "error"
)

// Event is the JSON message delivered to subscribers; Type
// discriminates how Data should be interpreted by the receiver.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"-"`
}

// MarshalJSON flattens Data's fields alongside Type so subscribers see
// a single flat JSON object with a "type" discriminator.
func (e Event) MarshalJSON() ([]byte, error) {
	return marshalFlat(e.Type, e.Data)
}

const subscriberBuffer = 32

// Bus is a per-job publish/subscribe hub. One Bus instance serves the
// whole process; subscriptions are namespaced internally by job id.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan Event // jobID -> subscriberID -> channel

	dropped int64
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[string]chan Event)}
}

// Subscribe registers a new subscriber for jobID and returns a receive
// channel plus an unsubscribe function. The channel is closed when
// Unsubscribe is called; callers must keep draining it until then.
func (b *Bus) Subscribe(jobID, subscriberID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[string]chan Event)
	}
	ch := make(chan Event, subscriberBuffer)
	b.subs[jobID][subscriberID] = ch

	return ch, func() { b.Unsubscribe(jobID, subscriberID) }
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(jobID, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[jobID]
	if !ok {
		return
	}
	if ch, ok := subs[subscriberID]; ok {
		delete(subs, subscriberID)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subs, jobID)
	}
}

// Publish fans an event out to every current subscriber of jobID,
// non-blocking: a subscriber whose buffer is full has the event
// dropped for it (no guaranteed delivery).
func (b *Bus) Publish(jobID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriberID, ch := range b.subs[jobID] {
		select {
		case ch <- event:
		default:
			b.dropped++
			logrus.WithFields(logrus.Fields{
				"job_id":        jobID,
				"subscriber_id": subscriberID,
				"event_type":    event.Type,
			}).Warn("event dropped, subscriber buffer full")
		}
	}
}

// SubscriberCount reports how many live subscribers jobID currently
// has.
func (b *Bus) SubscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[jobID])
}
