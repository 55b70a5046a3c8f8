package ports

import (
	"context"
	"time"
)

// KeyValueStore is a small string store. Adapters honour the transaction in
// context, so writes made inside UnitOfWork.WithTx commit or roll back with it.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
