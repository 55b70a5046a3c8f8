package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"batchtrack/internal/bootstrap/config"
	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

// Open builds the change bus selected by realtime.driver.
func Open(ctx context.Context, cfg config.RealtimeConfig) (ports.ChangeBus, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "realtime"))

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		logging.Info(logCtx, "change bus ready", slog.String("driver", "memory"))
		return NewMemoryBus(), nil
	case "redis":
		bus, err := NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "change bus ready", slog.String("driver", "redis"), slog.String("channel", bus.channel))
		return bus, nil
	case "nats":
		bus, err := NewNATSBus(ctx, cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, errs.WithKind(fmt.Errorf("unsupported realtime driver %q", cfg.Driver), errs.KindValidation)
	}
}
