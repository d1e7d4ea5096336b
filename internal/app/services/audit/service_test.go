package audit

import (
	"context"
	"testing"
	"time"

	domain "github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/storage/memory"
)

func TestService_RecordAndList(t *testing.T) {
	svc := New(memory.New(), nil)

	svc.Record(context.Background(), domain.OpMint, "minter", "", map[string]string{"amount": "10"})
	svc.Record(context.Background(), domain.OpBuy, "alice", "pool-1", nil)

	events, err := svc.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Op != domain.OpMint || events[1].PoolID != "pool-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestService_SubscribeReceivesEvents(t *testing.T) {
	svc := New(memory.New(), nil)
	ch, cancel := svc.Subscribe()
	defer cancel()

	svc.Record(context.Background(), domain.OpRedeem, "bob", "pool-1", nil)

	select {
	case evt := <-ch:
		if evt.Op != domain.OpRedeem || evt.Actor != "bob" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestService_CancelClosesChannel(t *testing.T) {
	svc := New(memory.New(), nil)
	ch, cancel := svc.Subscribe()
	cancel()
	// Idempotent.
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}

	// Recording after cancel must not panic or deliver.
	svc.Record(context.Background(), domain.OpMint, "m", "", nil)
}

func TestService_SlowSubscriberDropped(t *testing.T) {
	svc := New(nil, nil)
	ch, cancel := svc.Subscribe()
	defer cancel()

	// Fill the buffer past capacity; Record must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			svc.Record(context.Background(), domain.OpMint, "m", "", nil)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("record blocked on slow subscriber")
	}

	// The buffered prefix is still delivered.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no events delivered")
	}
}
