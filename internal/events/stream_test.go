package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func lifecycle(id string) Event {
	event := Lifecycle(KindLifecycle, 1, time.UnixMilli(42), "ship-"+id, "spawned")
	event.ID = id
	return event
}

func TestStreamDeliverAndAck(t *testing.T) {
	//1.- Arrange a stream and subscribe a test client.
	stream := NewStream(Config{Retain: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "journal", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	//2.- Publish a lifecycle, battle and lock event for coverage.
	if _, err := stream.Publish(lifecycle("evt-1")); err != nil {
		t.Fatalf("publish lifecycle failed: %v", err)
	}
	battleEvent := New(KindBattle, 2, time.UnixMilli(43))
	if _, err := stream.Publish(battleEvent); err != nil {
		t.Fatalf("publish battle failed: %v", err)
	}
	lock := Lifecycle(KindLock, 3, time.UnixMilli(44), "a", "lock acquired")
	lock.Metadata = map[string]string{"status": "locked", "": "dropped"}
	if _, err := stream.Publish(lock); err != nil {
		t.Fatalf("publish lock failed: %v", err)
	}

	//3.- Assert sequential delivery and sequential acknowledgement.
	for expected := uint64(1); expected <= 3; expected++ {
		select {
		case env := <-sub.Events():
			if env.Sequence != expected {
				t.Fatalf("expected sequence %d, got %d", expected, env.Sequence)
			}
			if env.Event.Kind == KindLock {
				if env.Event.Metadata["status"] != "locked" || len(env.Event.Metadata) != 1 {
					t.Fatalf("expected cleaned metadata, got %+v", env.Event.Metadata)
				}
			}
			if err := sub.Ack(env.Sequence); err != nil {
				t.Fatalf("ack failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", expected)
		}
	}
	if stream.Sequence() != 3 {
		t.Fatalf("expected sequence 3, got %d", stream.Sequence())
	}
}

func TestStreamResendsUnackedEventsOnResubscribe(t *testing.T) {
	//1.- Establish the stream and initial subscription.
	stream := NewStream(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "bravo", 2)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	//2.- Publish two lifecycle events and ack only the first.
	if err := stream.PublishAll([]Event{lifecycle("first"), lifecycle("second")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	env := <-sub.Events()
	if env.Event.ID != "first" {
		t.Fatalf("expected first event, got %q", env.Event.ID)
	}
	if err := sub.Ack(env.Sequence); err != nil {
		t.Fatalf("ack first failed: %v", err)
	}

	//3.- Drop the second event to simulate a crashed consumer and close the subscription.
	<-sub.Events()
	sub.Close()

	//4.- Re-subscribe and ensure the unacked event is replayed.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	replay, err := stream.Subscribe(ctx2, "bravo", 2)
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}

	select {
	case env := <-replay.Events():
		if env.Event.ID != "second" {
			t.Fatalf("expected replay of second event, got %q", env.Event.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for replayed event")
	}
}

func TestStreamRejectsOutOfOrderAck(t *testing.T) {
	//1.- Create the stream and publish a pair of events.
	stream := NewStream(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "charlie", 2)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := stream.PublishAll([]Event{lifecycle("one"), lifecycle("two")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	first := <-sub.Events()
	second := <-sub.Events()

	//2.- Attempt to ack the second sequence before the first and expect an error.
	if err := sub.Ack(second.Sequence); !errors.Is(err, ErrOutOfOrderAck) {
		t.Fatalf("expected out of order error, got %v", err)
	}

	//3.- Ack in the correct order to ensure recovery remains possible.
	if err := sub.Ack(first.Sequence); err != nil {
		t.Fatalf("ack first failed: %v", err)
	}
	if err := sub.Ack(second.Sequence); err != nil {
		t.Fatalf("ack second failed: %v", err)
	}
}

func TestStreamRejectsInvalidEvents(t *testing.T) {
	stream := NewStream(Config{})
	if _, err := stream.Publish(Event{ID: "x", Kind: "weather"}); err == nil {
		t.Fatalf("expected unknown kind rejection")
	}
	if _, err := stream.Publish(Event{Kind: KindCombat}); err == nil {
		t.Fatalf("expected missing id rejection")
	}
	var nilStream *Stream
	if _, err := nilStream.Publish(lifecycle("nil")); err == nil {
		t.Fatalf("expected nil stream error")
	}
}

func TestStreamRetentionPrunesAcknowledged(t *testing.T) {
	stream := NewStream(Config{Retain: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := stream.Subscribe(ctx, "delta", 8)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := stream.Publish(lifecycle(id)); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
		env := <-sub.Events()
		if err := sub.Ack(env.Sequence); err != nil {
			t.Fatalf("ack %s: %v", id, err)
		}
	}
	stream.mu.Lock()
	retained := len(stream.logOrder)
	stream.mu.Unlock()
	if retained > 2 {
		t.Fatalf("expected at most two retained events, got %d", retained)
	}
}
