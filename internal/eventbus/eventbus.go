// Package eventbus provides a thread-safe, non-blocking in-process event bus
// used to fan committed snapshots and topology changes out to push
// transports. It supports pub-sub with multiple topics and graceful shutdown.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

// Topic represents the name of an event topic
type Topic string

// Event Topic Constants
const (
	// TopicStatusSnapshot carries a *models.Snapshot after every committed cycle.
	TopicStatusSnapshot Topic = "status-snapshot"

	// TopicTopologyChanged carries the full []models.Link list after a change.
	TopicTopologyChanged Topic = "topology-changed"
)

// Event represents a generic event in the system
type Event struct {
	Topic     Topic
	Timestamp time.Time
	Payload   interface{}
}

// EventBus provides a thread-safe, non-blocking publish-subscribe event bus.
// Subscribers receive events through channels with bounded buffers. Events are
// dropped if a subscriber's buffer is full (non-blocking behavior).
type EventBus struct {
	// mu protects subscribers and closed
	mu sync.RWMutex

	// subscribers maps topics to their subscriber channels
	subscribers map[Topic][]chan Event

	// bufferSize is the buffer size for each subscriber channel
	bufferSize int

	closed bool

	// done signals graceful shutdown
	done chan struct{}

	// wg tracks relay goroutines for graceful shutdown
	wg sync.WaitGroup
}

// NewEventBus creates a new EventBus with the specified buffer size.
// The buffer size determines how many events can be queued per subscriber
// before new events are dropped.
//
// Example:
//
//	bus := NewEventBus(16)
//	ch := bus.Subscribe(TopicStatusSnapshot)
//	go func() {
//		for event := range ch {
//			// process event
//		}
//	}()
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < 1 {
		bufferSize = 10 // Default to 10 if invalid size provided
	}
	return &EventBus{
		subscribers: make(map[Topic][]chan Event),
		bufferSize:  bufferSize,
		done:        make(chan struct{}),
	}
}

// Subscribe registers a new subscriber for the given topic and returns a channel
// for receiving events. Each call creates an independent channel with its own
// buffer. The channel is closed when the EventBus is shut down via Close().
func (eb *EventBus) Subscribe(topic Topic) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, eb.bufferSize)
	if eb.closed {
		close(ch)
		return ch
	}
	eb.subscribers[topic] = append(eb.subscribers[topic], ch)

	return ch
}

// SubscribeMultiple registers a subscriber for several topics and returns a
// single channel receiving events from any of them. Like Subscribe, events
// are dropped when the buffer is full. The returned channel is closed once
// the EventBus is shut down.
//
// Example:
//
//	ch := bus.SubscribeMultiple(TopicStatusSnapshot, TopicTopologyChanged)
//	for event := range ch {
//		switch event.Topic {
//		case TopicStatusSnapshot:
//			// broadcast snapshot
//		case TopicTopologyChanged:
//			// broadcast links
//		}
//	}
func (eb *EventBus) SubscribeMultiple(topics ...Topic) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Create a dedicated channel for multiplexing
	muxCh := make(chan Event, eb.bufferSize)
	if eb.closed {
		close(muxCh)
		return muxCh
	}

	var relays sync.WaitGroup
	for _, topic := range topics {
		ch := make(chan Event, eb.bufferSize)
		eb.subscribers[topic] = append(eb.subscribers[topic], ch)

		relays.Add(1)
		eb.wg.Add(1)
		go func(relayChan <-chan Event) {
			defer eb.wg.Done()
			defer relays.Done()
			for {
				select {
				case event, ok := <-relayChan:
					if !ok {
						return
					}
					// Try to send to mux channel, drop if full
					select {
					case muxCh <- event:
					default:
					}
				case <-eb.done:
					return
				}
			}
		}(ch)
	}

	go func() {
		relays.Wait()
		close(muxCh)
	}()

	return muxCh
}

// Publish publishes an event to all subscribers of the topic. It never
// blocks: if a subscriber's buffer is full the event is dropped for that
// subscriber only. It returns the number of subscribers that received it.
func (eb *EventBus) Publish(ctx context.Context, topic Topic, payload interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return 0, ErrClosed
	}

	event := Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	delivered := 0
	for _, ch := range eb.subscribers[topic] {
		select {
		case ch <- event:
			delivered++
		default:
			// Channel buffer full; slow subscribers must not block the publisher
		}
	}

	return delivered, nil
}

// SubscriberCount returns the number of subscriber channels for a topic.
func (eb *EventBus) SubscriberCount(topic Topic) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[topic])
}

// Close shuts the EventBus down. All subscriber channels are closed and Close
// blocks until relay goroutines have finished. Close is idempotent.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return nil
	}
	eb.closed = true

	// Signal all goroutines to stop
	close(eb.done)

	for _, subscribers := range eb.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
	}
	eb.subscribers = make(map[Topic][]chan Event)
	eb.mu.Unlock()

	// Wait for all relay goroutines from SubscribeMultiple
	eb.wg.Wait()

	return nil
}

func (t Topic) String() string {
	return string(t)
}

// String returns a human-readable representation of an Event, for logging.
func (e Event) String() string {
	return fmt.Sprintf("Event{Topic: %s, Timestamp: %s, Payload: %T}",
		e.Topic.String(),
		e.Timestamp.Format(time.RFC3339Nano),
		e.Payload,
	)
}
