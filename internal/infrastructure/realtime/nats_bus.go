package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

type NATSBus struct {
	nc      *nats.Conn
	subject string
	closed  chan struct{}
}

var _ ports.ChangeBus = (*NATSBus)(nil)

func NewNATSBus(ctx context.Context, url string, subject string) (*NATSBus, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		url = nats.DefaultURL
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "batchtrack.changes"
	}

	bus := &NATSBus{subject: subject, closed: make(chan struct{})}
	nc, err := nats.Connect(url,
		nats.Name("batchtrack"),
		nats.Timeout(5*time.Second),
		nats.ClosedHandler(func(*nats.Conn) { close(bus.closed) }),
	)
	if err != nil {
		return nil, errs.Wrap(err, "nats connect")
	}
	bus.nc = nc

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "realtime.nats")),
		"nats connected",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("subject", subject),
	)
	return bus, nil
}

func (b *NATSBus) Publish(ctx context.Context, change ports.BatchChange) error {
	if b == nil || b.nc == nil {
		return errors.New("nats bus not initialized")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	raw, err := json.Marshal(change)
	if err != nil {
		return errs.Wrap(err, "marshal batch change")
	}
	if err := b.nc.Publish(b.subject, raw); err != nil {
		return errs.Wrap(err, "nats publish")
	}
	return nil
}

func (b *NATSBus) Listen(ctx context.Context, handler func(ports.BatchChange)) (<-chan error, error) {
	if b == nil || b.nc == nil {
		return nil, errors.New("nats bus not initialized")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := b.nc.ChanSubscribe(b.subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: nats subscribe: %w", ports.ErrSubscription, err)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "realtime.nats"), slog.String("subject", b.subject))
	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer func() { _ = sub.Unsubscribe() }()

		for {
			select {
			case <-ctx.Done():
				done <- nil
				return
			case <-b.closed:
				done <- fmt.Errorf("%w: nats connection closed", ports.ErrSubscription)
				return
			case m := <-msgs:
				var change ports.BatchChange
				if err := json.Unmarshal(m.Data, &change); err != nil {
					logging.Warn(logCtx, "bad batch change payload", slog.Any("err", errs.Loggable(err)))
					continue
				}
				handler(change)
			}
		}
	}()
	return done, nil
}

func (b *NATSBus) Close() error {
	if b == nil || b.nc == nil {
		return nil
	}
	b.nc.Close()
	return nil
}
