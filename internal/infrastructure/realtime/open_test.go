package realtime

import (
	"context"
	"testing"

	"batchtrack/internal/bootstrap/config"
	"batchtrack/internal/errs"
)

func TestOpenDefaultsToMemoryBus(t *testing.T) {
	bus, err := Open(context.Background(), config.RealtimeConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	if _, ok := bus.(*MemoryBus); !ok {
		t.Fatalf("Open() = %T, want *MemoryBus", bus)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.RealtimeConfig{Driver: "kafka"})
	if err == nil {
		t.Fatalf("Open() error = nil")
	}
	if kind := errs.KindOf(err); kind != errs.KindValidation {
		t.Fatalf("KindOf() = %q, want %q", kind, errs.KindValidation)
	}
}
