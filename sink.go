package missionrt

import "sync"

// subscriberBuffer is the per-subscriber channel capacity. A slow or absent
// subscriber has events dropped past this point rather than blocking the
// producing adapter.
const subscriberBuffer = 256

// EventSink is a multi-producer, multi-subscriber broadcast channel of
// AgentEvent. Producers never block: Publish fans out to every current
// subscriber with a non-blocking send, dropping the event for any
// subscriber whose buffer is full. One EventSink is created per control
// session and shared by reference across all concurrent missions.
type EventSink struct {
	mu   sync.RWMutex
	subs map[int]chan AgentEvent
	next int
}

// NewEventSink creates an empty EventSink.
func NewEventSink() *EventSink {
	return &EventSink{subs: make(map[int]chan AgentEvent)}
}

// Subscribe registers a new subscriber and returns a receive-only channel of
// future events plus an unsubscribe function. Callers must call unsubscribe
// when done to release the channel; failing to do so leaks a slot but never
// blocks producers (Publish is always non-blocking).
func (s *EventSink) Subscribe() (<-chan AgentEvent, func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	ch := make(chan AgentEvent, subscriberBuffer)
	s.subs[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish fans out ev to every current subscriber. Never blocks: a
// subscriber whose buffer is full has this event dropped.
func (s *EventSink) Publish(ev AgentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of currently registered subscribers.
// Intended for metrics/health reporting, not control flow.
func (s *EventSink) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
