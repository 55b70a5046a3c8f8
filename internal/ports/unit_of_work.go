package ports

import (
	"context"

	"batchtrack/internal/errs"
)

// ErrCommit marks a unit of work that was not applied. Retrying the whole unit is safe.
var ErrCommit = errs.NewKind(errs.KindCommit, "atomic commit failed")

// Tx is an opaque transaction handle for repositories/adapters.
// Infrastructure controls the concrete type (for example, *gorm.DB).
type Tx interface{}

// UnitOfWork defines a transaction boundary.
//
// This is intentionally callback-style: returning an error causes rollback,
// returning nil causes commit. Errors that carry a domain kind are returned
// unchanged; every other failure is reported as ErrCommit.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
