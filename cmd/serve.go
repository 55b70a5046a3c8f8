package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/transport/httpapi"
)

const keyPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, websocket streams and metrics",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(ctx, app.Batches, app.Feed, app.Metrics.Handler()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "listen and serve")
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
			defer cancel()
			logging.Info(ctx, "http server shutting down")
			return server.Shutdown(shutdownCtx)
		})
		group.Go(func() error {
			ticker := time.NewTicker(keyPurgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if _, err := app.PurgeExpiredKeys(groupCtx); err != nil && groupCtx.Err() == nil {
						logging.Warn(ctx, "purge request keys failed", slog.Any("err", errs.Loggable(err)))
					}
				}
			}
		})

		if err := group.Wait(); err != nil {
			return err
		}
		logging.Info(ctx, "http server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
}
