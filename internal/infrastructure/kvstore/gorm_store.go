package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"batchtrack/internal/errs"
	"batchtrack/internal/infrastructure/persistence/relational/model"
	"batchtrack/internal/ports"
)

// GormStore keeps key/value entries in the kv_entries table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.KeyValueStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}
	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func normalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("key is required")
	}
	return trimmed, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return "", false, err
	}
	trimmedKey, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}

	var row model.KVEntry
	if err := db.Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query kv entry")
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(s.now().UTC()) {
		return "", false, nil
	}
	return row.Value, true, nil
}

// Set upserts key. A zero ttl keeps the entry until it is deleted.
func (s *GormStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	trimmedKey, err := normalizeKey(key)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	row := model.KVEntry{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		row.ExpiresAt = &expiresAt
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert kv entry")
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}
	trimmedKey, err := normalizeKey(key)
	if err != nil {
		return err
	}

	if err := db.Where("key = ?", trimmedKey).Delete(&model.KVEntry{}).Error; err != nil {
		return errs.Wrap(err, "delete kv entry")
	}
	return nil
}

// PurgeExpired removes entries whose ttl has elapsed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).Delete(&model.KVEntry{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "purge expired kv entries")
	}
	return result.RowsAffected, nil
}
