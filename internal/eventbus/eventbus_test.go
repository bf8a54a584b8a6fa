package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	ch := bus.Subscribe(TopicStatusSnapshot)
	other := bus.Subscribe(TopicTopologyChanged)
	if got := bus.SubscriberCount(TopicStatusSnapshot); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", got)
	}

	n, err := bus.Publish(context.Background(), TopicStatusSnapshot, "payload")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	select {
	case ev := <-ch:
		if ev.Topic != TopicStatusSnapshot || ev.Payload != "payload" {
			t.Errorf("unexpected event %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other:
		t.Errorf("other topic received %v", ev)
	default:
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(TopicStatusSnapshot)
	ctx := context.Background()

	if n, _ := bus.Publish(ctx, TopicStatusSnapshot, 1); n != 1 {
		t.Fatalf("first publish delivered %d", n)
	}
	// buffer full; must not block
	if n, _ := bus.Publish(ctx, TopicStatusSnapshot, 2); n != 0 {
		t.Errorf("second publish delivered %d, want 0", n)
	}

	ev := <-ch
	if ev.Payload != 1 {
		t.Errorf("payload = %v, want the first event", ev.Payload)
	}
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	bus := NewEventBus(8)

	ch := bus.SubscribeMultiple(TopicStatusSnapshot, TopicTopologyChanged)
	ctx := context.Background()
	bus.Publish(ctx, TopicStatusSnapshot, "a")
	bus.Publish(ctx, TopicTopologyChanged, "b")

	seen := map[Topic]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-ch:
			seen[ev.Topic] = true
		case <-time.After(time.Second):
			t.Fatalf("only received %v", seen)
		}
	}

	bus.Close()
	select {
	case _, ok := <-ch:
		if ok {
			// drain any late relay then expect close
			for range ch {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("mux channel not closed after Close")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(2)
	ch := bus.Subscribe(TopicStatusSnapshot)

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	if got := bus.SubscriberCount(TopicStatusSnapshot); got != 0 {
		t.Errorf("SubscriberCount() after Close = %d, want 0", got)
	}
	if _, err := bus.Publish(context.Background(), TopicStatusSnapshot, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close = %v, want ErrClosed", err)
	}
	if _, ok := <-bus.Subscribe(TopicStatusSnapshot); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}
