package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"batchtrack/internal/ports"
)

func TestMemoryBusFansOutToEveryListener(t *testing.T) {
	bus := NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan ports.BatchChange, 1)
	second := make(chan ports.BatchChange, 1)
	if _, err := bus.Listen(ctx, func(c ports.BatchChange) { first <- c }); err != nil {
		t.Fatalf("Listen(first) error = %v", err)
	}
	if _, err := bus.Listen(ctx, func(c ports.BatchChange) { second <- c }); err != nil {
		t.Fatalf("Listen(second) error = %v", err)
	}

	if err := bus.Publish(ctx, ports.BatchChange{BatchID: "B1", Action: "claim", Status: "awaitingQA"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for name, ch := range map[string]chan ports.BatchChange{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got.BatchID != "B1" || got.Action != "claim" {
				t.Fatalf("%s listener got %+v", name, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s listener did not receive change", name)
		}
	}
}

func TestMemoryBusListenStopsOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done, err := bus.Listen(ctx, func(ports.BatchChange) {})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen() done error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Listen() did not stop after cancel")
	}
}

func TestMemoryBusCloseEndsListeners(t *testing.T) {
	bus := NewMemoryBus()
	done, err := bus.Listen(context.Background(), func(ports.BatchChange) {})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("Listen() done error = nil, want closed error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Listen() did not stop after Close")
	}

	if err := bus.Publish(context.Background(), ports.BatchChange{BatchID: "B1"}); err == nil {
		t.Fatalf("Publish() after Close should fail")
	}
}

func TestMemoryBusSlowListenerKeepsLatestPerBatch(t *testing.T) {
	bus := NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	var (
		mu   sync.Mutex
		seen = make(map[string]string)
		last string
	)
	if _, err := bus.Listen(ctx, func(c ports.BatchChange) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		mu.Lock()
		defer mu.Unlock()
		seen[c.BatchID] = c.Status
		last = c.BatchID
	}); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if err := bus.Publish(ctx, ports.BatchChange{BatchID: "warmup"}); err != nil {
		t.Fatalf("Publish(warmup) error = %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("listener did not start")
	}

	const batches = 200
	for i := 0; i < batches; i++ {
		id := fmt.Sprintf("B%d", i)
		for _, status := range []string{"awaitingQA", "approved"} {
			if err := bus.Publish(ctx, ports.BatchChange{BatchID: id, Status: status}); err != nil {
				t.Fatalf("Publish(%s) error = %v", id, err)
			}
		}
	}
	close(gate)

	want := fmt.Sprintf("B%d", batches-1)
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := last == want
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("last change for %s never arrived", want)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < batches; i++ {
		id := fmt.Sprintf("B%d", i)
		if seen[id] != "approved" {
			t.Fatalf("%s status = %q, want approved", id, seen[id])
		}
	}
}
