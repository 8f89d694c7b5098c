package briefing

import (
	"sync"
	"time"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// it is dropped.
const subscriberBuffer = 64

// Subscription is one live event stream for a session.
type Subscription struct {
	events chan Event
	once   sync.Once
}

// Events returns the subscriber's event channel. The channel is closed when
// the subscription is cancelled, the session is deleted, or the subscriber
// falls too far behind.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Broadcaster fans session lifecycle events out to live subscribers.
// Events for one session are delivered to every subscriber in the exact
// order they were published. A broken or slow subscriber is dropped
// silently without affecting delivery to others.
type Broadcaster struct {
	mutex    sync.Mutex
	sessions map[string]map[*Subscription]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sessions: map[string]map[*Subscription]struct{}{}}
}

// Subscribe registers a new subscriber for a session and immediately queues
// the given connected event as its catch-up snapshot. There is no event
// replay beyond this single snapshot.
func (b *Broadcaster) Subscribe(sessionID string, connected Event) *Subscription {
	sub := &Subscription{events: make(chan Event, subscriberBuffer)}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	subs, ok := b.sessions[sessionID]
	if !ok {
		subs = map[*Subscription]struct{}{}
		b.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}

	connected.Type = EventConnected
	connected.SessionID = sessionID
	connected.Timestamp = time.Now()
	sub.events <- connected
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sessionID string, sub *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.remove(sessionID, sub)
}

// remove must be called with the mutex held.
func (b *Broadcaster) remove(sessionID string, sub *Subscription) {
	if subs, ok := b.sessions[sessionID]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			sub.close()
		}
		if len(subs) == 0 {
			delete(b.sessions, sessionID)
		}
	}
}

// Publish delivers an event to every live subscriber for the session.
// Publishing never blocks: a subscriber whose buffer is full is dropped.
func (b *Broadcaster) Publish(sessionID string, event Event) {
	event.SessionID = sessionID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	for sub := range b.sessions[sessionID] {
		select {
		case sub.events <- event:
		default:
			b.remove(sessionID, sub)
		}
	}
}

// CloseSession drops every subscriber for a session. Called when the
// session is deleted.
func (b *Broadcaster) CloseSession(sessionID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for sub := range b.sessions[sessionID] {
		sub.close()
	}
	delete(b.sessions, sessionID)
}

// SubscriberCount returns the number of live subscribers for a session.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.sessions[sessionID])
}
