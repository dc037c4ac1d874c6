package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewEventBus(t *testing.T) {
	bus := NewEventBus(100)
	if bus == nil {
		t.Fatal("NewEventBus returned nil")
	}

	bus2 := NewEventBus(0)
	if bus2 == nil {
		t.Fatal("NewEventBus with 0 buffer should use default")
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventTypeFrameAnalyzed)
	if ch == nil {
		t.Fatal("Subscribe returned nil channel")
	}

	event := Event{
		Type:   EventTypeFrameAnalyzed,
		Source: "test",
		Data:   map[string]interface{}{"camera_id": "cam-1"},
	}

	bus.Publish(event)

	select {
	case received := <-ch:
		if received.Type != EventTypeFrameAnalyzed {
			t.Errorf("Expected event type %s, got %s", EventTypeFrameAnalyzed, received.Type)
		}
		if received.Source != "test" {
			t.Errorf("Expected source 'test', got %s", received.Source)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Event not received within timeout")
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)

	// Subscribe to specific event types first to populate subscribers map
	bus.Subscribe(EventTypeFrameAnalyzed)
	bus.Subscribe(EventTypeSnapshotSaved)

	ch := bus.SubscribeAll()
	if ch == nil {
		t.Fatal("SubscribeAll returned nil channel")
	}

	bus.Publish(Event{Type: EventTypeFrameAnalyzed, Source: "test"})
	bus.Publish(Event{Type: EventTypeSnapshotSaved, Source: "test"})

	received := 0
	timeout := time.After(1 * time.Second)
	for received < 2 {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatalf("Expected 2 events, got %d", received)
		}
	}
}

func TestEventBus_Publish_Timestamp(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventTypeSnapshotSaved)

	bus.Publish(Event{Type: EventTypeSnapshotSaved, Source: "test"})

	select {
	case received := <-ch:
		if received.Timestamp.IsZero() {
			t.Error("Timestamp should be set on publish")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Event not received within timeout")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventTypeStreamConnected)
	bus.Unsubscribe(EventTypeStreamConnected, ch)

	// Channel should be closed after unsubscribe
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed after unsubscribe")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Channel not closed within timeout")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch1 := bus.Subscribe(EventTypeStreamConnected)
	ch2 := bus.Subscribe(EventTypeSnapshotSaved)

	bus.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("Channel should be closed after Close")
			}
		case <-time.After(1 * time.Second):
			t.Fatal("Channel not closed within timeout")
		}
	}
}

func TestEventBus_SubscribeWithHandler(t *testing.T) {
	bus := NewEventBus(10)

	var handled int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.SubscribeWithHandler(ctx, EventTypeSettingsApplied, func(ctx context.Context, event Event) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	bus.Publish(Event{Type: EventTypeSettingsApplied, Source: "test"})

	deadline := time.Now().Add(1 * time.Second)
	for atomic.LoadInt32(&handled) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Handler not invoked within timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventBus_Publish_NonBlocking(t *testing.T) {
	bus := NewEventBus(1)

	bus.Subscribe(EventTypeFrameAnalyzed)

	// Fill the buffer and publish past capacity; must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: EventTypeFrameAnalyzed, Source: "test"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}
