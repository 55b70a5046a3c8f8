package uow

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithTx runs fn inside one transaction. Nested calls join the outer transaction.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if fn == nil {
		return errors.New("tx function is required")
	}
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
	return classify(err)
}

// classify keeps domain failures as-is and reports storage failures as ErrCommit.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch errs.KindOf(err) {
	case errs.KindInternal, errs.KindCommit:
	default:
		return err
	}
	if errors.Is(err, ports.ErrCommit) {
		return err
	}
	return fmt.Errorf("%w: %w", ports.ErrCommit, errs.WithStack(err))
}
