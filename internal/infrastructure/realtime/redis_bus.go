package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

type RedisBus struct {
	rdb     *goredis.Client
	channel string
}

var _ ports.ChangeBus = (*RedisBus)(nil)

func NewRedisBus(ctx context.Context, addr string, channel string) (*RedisBus, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("realtime.redis.addr is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "batchtrack:changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Wrap(err, "redis ping")
	}

	return &RedisBus{rdb: rdb, channel: channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, change ports.BatchChange) error {
	if b == nil || b.rdb == nil {
		return errors.New("redis bus not initialized")
	}
	raw, err := json.Marshal(change)
	if err != nil {
		return errs.Wrap(err, "marshal batch change")
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return errs.Wrap(err, "redis publish")
	}
	return nil
}

func (b *RedisBus) Listen(ctx context.Context, handler func(ports.BatchChange)) (<-chan error, error) {
	if b == nil || b.rdb == nil {
		return nil, errors.New("redis bus not initialized")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: redis subscribe: %w", ports.ErrSubscription, err)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "realtime.redis"), slog.String("channel", b.channel))
	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				done <- nil
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					done <- fmt.Errorf("%w: redis channel closed", ports.ErrSubscription)
					return
				}
				var change ports.BatchChange
				if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
					logging.Warn(logCtx, "bad batch change payload", slog.Any("err", errs.Loggable(err)))
					continue
				}
				handler(change)
			}
		}
	}()
	return done, nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
