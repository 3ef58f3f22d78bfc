package service

import (
	"sync"
	"sync/atomic"
)

// EventType defines the type of event
type EventType string

const (
	EventSessionSeeded   EventType = "session_seeded"
	EventSessionClosed   EventType = "session_closed"
	EventScenePatch      EventType = "scene_patch"
	EventFrame           EventType = "frame"
	EventNotice          EventType = "notice"
	EventPanelSet        EventType = "panel_set"
	EventPanelCleared    EventType = "panel_cleared"
	EventNodeClicked     EventType = "node_clicked"
	EventViewportResized EventType = "viewport_resized"
)

// Event represents an event that occurred in a session
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Seq       uint64      `json:"seq"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[int]chan<- Event
	nextID      int
	seq         atomic.Uint64
	dropped     atomic.Uint64
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[int]chan<- Event),
	}
}

// Subscribe adds a subscriber to receive events. The returned function
// removes it again.
func (eb *EventBus) Subscribe(ch chan<- Event) (unsubscribe func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.subscribers, id)
			eb.mu.Unlock()
		})
	}
}

// Publish stamps the event with the next sequence number and sends it to
// all subscribers. Slow subscribers miss the event.
func (eb *EventBus) Publish(event Event) Event {
	event.Seq = eb.seq.Add(1)

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
			eb.dropped.Add(1)
		}
	}
	return event
}

// Dropped returns how many deliveries were skipped for slow subscribers
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Subscribers returns the current subscriber count
func (eb *EventBus) Subscribers() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
