package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/feed"
)

var watchCmd = &cobra.Command{
	Use:   "watch <active|qa-queue|archive|samples>",
	Short: "Print a view snapshot on every change",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		view, err := domainbatch.ParseView(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		batchID, _ := cmd.Flags().GetString("batch")
		once, _ := cmd.Flags().GetBool("once")

		encoder := json.NewEncoder(cmd.OutOrStdout())
		if once {
			snap, err := app.Feed.ViewSnapshot(ctx, view, batchID)
			if err != nil {
				return errs.Wrap(err, "read snapshot")
			}
			if err := encoder.Encode(snap); err != nil {
				return errs.Wrap(err, "write snapshot")
			}
			return nil
		}

		var streamErr error
		sub, err := app.Feed.Subscribe(view, batchID, func(snap feed.Snapshot) {
			if snap.Err != nil {
				streamErr = snap.Err
				return
			}
			if err := encoder.Encode(snap); err != nil {
				logging.Warn(ctx, "write snapshot failed", slog.String("reason", err.Error()))
			}
		})
		if err != nil {
			return errs.Wrap(err, "subscribe")
		}
		logging.Info(ctx, "watching view", slog.String("view", string(sub.View())))

		select {
		case <-ctx.Done():
			sub.Cancel()
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "watch stopped")
			return nil
		case <-sub.Done():
			sub.Cancel()
			if streamErr != nil {
				return errs.Wrap(streamErr, "watch ended")
			}
			return nil
		}
	}),
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("batch", "", "Batch id (required for the samples view)")
	watchCmd.Flags().Bool("once", false, "Print the current snapshot and exit")
}
