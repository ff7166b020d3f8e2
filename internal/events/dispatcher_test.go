package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishRunsAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	var calls []string

	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	if !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v, want boom", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v, want [first second]", calls)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventArticlePublished}); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		panic("nil map")
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketUpdated})
	if err == nil {
		t.Fatal("Publish() error = nil, want the recovered panic")
	}
	if !ran {
		t.Fatal("handler after the panicking one did not run")
	}
}

func TestPublishStopsOnCancelledContext(t *testing.T) {
	d := NewInMemoryDispatcher()
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Fatal("handler ran with a cancelled context")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Publish(ctx, Event{Type: EventTicketCreated}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish() error = %v, want context.Canceled", err)
	}
}
