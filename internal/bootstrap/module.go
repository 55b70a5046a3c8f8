package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"batchtrack/internal/bootstrap/config"
	"batchtrack/internal/bootstrap/database"
	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/infrastructure/kvstore"
	"batchtrack/internal/infrastructure/metrics"
	relrepo "batchtrack/internal/infrastructure/persistence/relational/repository"
	reluow "batchtrack/internal/infrastructure/persistence/relational/uow"
	"batchtrack/internal/infrastructure/realtime"
	"batchtrack/internal/ports"
	"batchtrack/internal/usecase/batch"
	"batchtrack/internal/usecase/feed"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideChangeBus),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			relrepo.NewBatchRepository,
			fx.As(new(ports.BatchRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			reluow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		kvstore.NewGormStore,
		func(s *kvstore.GormStore) ports.KeyValueStore { return s },
	),
	fx.Provide(
		metrics.NewRecorder,
		func(r *metrics.Recorder) ports.TransitionObserver { return r },
		func(r *metrics.Recorder) ports.FeedObserver { return r },
	),
	fx.Provide(batch.NewService),
	fx.Provide(provideHub),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideChangeBus(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.ChangeBus, error) {
	bus, err := realtime.Open(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), cfg.Realtime)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bus.Close()
		},
	})
	return bus, nil
}

// provideHub listens for the lifetime of the command context, not the
// start hook's deadline.
func provideHub(lc fx.Lifecycle, ctx context.Context, cfg config.Config, svc *batch.Service, bus ports.ChangeBus, observer ports.FeedObserver) *feed.Hub {
	hub := feed.NewHub(svc, bus, observer, cfg.Realtime.RefreshInterval)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return hub.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			hub.Stop()
			return nil
		},
	})
	return hub
}

func provideApp(cfg config.Config, db *gorm.DB, svc *batch.Service, hub *feed.Hub, recorder *metrics.Recorder, kv *kvstore.GormStore) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Batches: svc,
		Feed:    hub,
		Metrics: recorder,
		KV:      kv,
	}
}
