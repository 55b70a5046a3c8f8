package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"batchtrack/internal/bootstrap/config"
	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/infrastructure/kvstore"
	"batchtrack/internal/infrastructure/metrics"
	"batchtrack/internal/infrastructure/persistence/relational/model"
	"batchtrack/internal/usecase/batch"
	"batchtrack/internal/usecase/feed"
)

type App struct {
	Config  config.Config
	DB      *gorm.DB
	Batches *batch.Service
	Feed    *feed.Hub
	Metrics *metrics.Recorder
	KV      *kvstore.GormStore
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// PurgeExpiredKeys drops request keys past their retention.
func (a *App) PurgeExpiredKeys(ctx context.Context) (int64, error) {
	if a.KV == nil {
		return 0, nil
	}
	n, err := a.KV.PurgeExpired(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "purge expired keys")
	}
	if n > 0 {
		logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "expired request keys purged", slog.Int64("count", n))
	}
	return n, nil
}
