package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/batch"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative batch operations",
}

var adminReassignCmd = &cobra.Command{
	Use:   "reassign",
	Short: "Hand a batch to another processor or QA",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		kind, _ := cmd.Flags().GetString("kind")
		to, _ := cmd.Flags().GetString("to")

		input := batch.ReassignInput{Actor: currentActor(), BatchID: batchID, NewActorID: to}
		var err error
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "processor":
			err = app.Batches.ReassignProcessor(ctx, input)
		case "qa":
			err = app.Batches.ReassignQA(ctx, input)
		default:
			err = &domainbatch.ValidationError{Field: "kind", Reason: "must be processor or qa"}
		}
		if err != nil {
			return errs.Wrap(err, "reassign batch")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "reassigned batch: %s %s=%s\n", batchID, kind, to); err != nil {
			return errs.Wrap(err, "write reassign output")
		}
		return nil
	}),
}

var adminPurgeKeysCmd = &cobra.Command{
	Use:   "purge-keys",
	Short: "Delete expired request keys",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		n, err := app.PurgeExpiredKeys(ctx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "purged request keys: %d\n", n); err != nil {
			return errs.Wrap(err, "write purge output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminReassignCmd)
	adminCmd.AddCommand(adminPurgeKeysCmd)

	adminReassignCmd.Flags().String("batch", "", "Batch id")
	adminReassignCmd.Flags().String("kind", "", "Staff slot to change (processor|qa)")
	adminReassignCmd.Flags().String("to", "", "New actor id")
	_ = adminReassignCmd.MarkFlagRequired("batch")
	_ = adminReassignCmd.MarkFlagRequired("kind")
	_ = adminReassignCmd.MarkFlagRequired("to")
}
