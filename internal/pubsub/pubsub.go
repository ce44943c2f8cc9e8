package pubsub

import (
	"log"
	"sync"
)

// SubscriberBuffer is the capacity of every subscriber channel. Events published
// to a full channel are dropped for that subscriber.
const SubscriberBuffer = 64

// Event is one fan-out message. Type is the outbound websocket message type and
// Payload its fields.
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Upstream is a cross-process transport (Redis, NATS) the local bus bridges to.
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
	Close() error
}

// Bus is what the game engine publishes game-wide events on.
type Bus interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
	Close() error
}

// PubSub fans events out to in-process subscribers, optionally through an upstream.
type PubSub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream
	upstreamCh  chan Event
	closed      bool
}

// New creates an in-process bus
func New() *PubSub {
	return &PubSub{
		subscribers: []chan Event{},
	}
}

// NewWithUpstream creates a bus that publishes through upstream. Events come back
// from the upstream subscription and are delivered to local subscribers, so every
// instance sharing the upstream sees every event exactly once.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		subscribers: []chan Event{},
		upstream:    upstream,
		upstreamCh:  upstream.Subscribe(),
	}

	go func() {
		for event := range ps.upstreamCh {
			ps.publishLocal(event)
		}
		log.Println("[BUS] upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan Event, SubscriberBuffer)
	if ps.closed {
		close(ch)
		return ch
	}
	ps.subscribers = append(ps.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber. Unknown channels are left alone.
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, sub := range ps.subscribers {
		if sub == ch {
			close(ch)
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers, through the upstream when configured
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

func (ps *PubSub) publishLocal(event Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[BUS] subscriber full, dropping %s event", event.Type)
		}
	}
}

// Close closes every subscriber channel and the upstream.
func (ps *PubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	for _, ch := range ps.subscribers {
		close(ch)
	}
	ps.subscribers = nil
	ps.mu.Unlock()

	if ps.upstream != nil {
		ps.upstream.Unsubscribe(ps.upstreamCh)
		return ps.upstream.Close()
	}
	return nil
}

// fanout is the subscriber list shared by the upstream implementations.
type fanout struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

func (f *fanout) subscribe() chan Event {
	ch := make(chan Event, SubscriberBuffer)
	f.mu.Lock()
	f.subscribers = append(f.subscribers, ch)
	f.mu.Unlock()
	return ch
}

func (f *fanout) unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub == ch {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (f *fanout) deliver(event Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subscribers {
		close(sub)
	}
	f.subscribers = nil
}
