package uow

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/infrastructure/persistence/relational/model"
	"batchtrack/internal/ports"
)

func setupUnitOfWork(t *testing.T) (*UnitOfWork, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewUnitOfWork(db), db
}

func TestWithTxRollsBackOnDomainError(t *testing.T) {
	u, db := setupUnitOfWork(t)

	err := u.WithTx(context.Background(), func(ctx context.Context) error {
		tx := ports.TxFromContext(ctx).(*gorm.DB)
		if err := tx.Create(&model.KVEntry{Key: "k", Value: "v"}).Error; err != nil {
			return err
		}
		return domainbatch.ErrInvalidState
	})
	if !errors.Is(err, domainbatch.ErrInvalidState) {
		t.Fatalf("WithTx() error = %v, want ErrInvalidState", err)
	}
	if errors.Is(err, ports.ErrCommit) {
		t.Fatalf("WithTx() domain error should not be reported as commit failure")
	}

	var count int64
	if err := db.Model(&model.KVEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count kv entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("kv entries = %d, want 0 after rollback", count)
	}
}

func TestWithTxReportsStorageFailureAsCommitError(t *testing.T) {
	u, _ := setupUnitOfWork(t)

	err := u.WithTx(context.Background(), func(ctx context.Context) error {
		tx := ports.TxFromContext(ctx).(*gorm.DB)
		return tx.Exec("INSERT INTO no_such_table (x) VALUES (1)").Error
	})
	if !errors.Is(err, ports.ErrCommit) {
		t.Fatalf("WithTx() error = %v, want ErrCommit", err)
	}
	if got := errs.KindOf(err); got != errs.KindCommit {
		t.Fatalf("KindOf() = %q, want %q", got, errs.KindCommit)
	}
}

func TestWithTxCommitsAndJoinsOuterTx(t *testing.T) {
	u, db := setupUnitOfWork(t)

	err := u.WithTx(context.Background(), func(ctx context.Context) error {
		outer := ports.TxFromContext(ctx)
		return u.WithTx(ctx, func(inner context.Context) error {
			if ports.TxFromContext(inner) != outer {
				t.Errorf("nested WithTx should reuse the outer transaction")
			}
			return ports.TxFromContext(inner).(*gorm.DB).Create(&model.KVEntry{Key: "k", Value: "v"}).Error
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	var row model.KVEntry
	if err := db.Where("key = ?", "k").Take(&row).Error; err != nil {
		t.Fatalf("query committed row: %v", err)
	}
}
