package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/batch"
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "QA actions on a batch",
}

var qaClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim an awaiting batch for testing",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		if err := app.Batches.ClaimForTesting(ctx, batch.ClaimInput{
			Actor:   currentActor(),
			BatchID: batchID,
		}); err != nil {
			return errs.Wrap(err, "claim batch")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "claimed batch: %s qa=%s\n", batchID, actorID); err != nil {
			return errs.Wrap(err, "write claim output")
		}
		return nil
	}),
}

var qaHoldCmd = &cobra.Command{
	Use:   "hold",
	Short: "Put a batch on hold",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		notes, _ := cmd.Flags().GetString("notes")
		if err := app.Batches.SetOnHold(ctx, batch.HoldInput{
			Actor:   currentActor(),
			BatchID: batchID,
			Notes:   notes,
		}); err != nil {
			return errs.Wrap(err, "hold batch")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "batch on hold: %s\n", batchID); err != nil {
			return errs.Wrap(err, "write hold output")
		}
		return nil
	}),
}

var qaRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject a batch",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		notes, _ := cmd.Flags().GetString("notes")
		if err := app.Batches.RejectBatch(ctx, batch.RejectInput{
			Actor:   currentActor(),
			BatchID: batchID,
			Notes:   notes,
		}); err != nil {
			return errs.Wrap(err, "reject batch")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "batch rejected: %s\n", batchID); err != nil {
			return errs.Wrap(err, "write reject output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(qaCmd)
	qaCmd.AddCommand(qaClaimCmd)
	qaCmd.AddCommand(qaHoldCmd)
	qaCmd.AddCommand(qaRejectCmd)

	for _, c := range []*cobra.Command{qaClaimCmd, qaHoldCmd, qaRejectCmd} {
		c.Flags().String("batch", "", "Batch id")
		_ = c.MarkFlagRequired("batch")
	}
	qaHoldCmd.Flags().String("notes", "", "Reason for the hold")
	qaRejectCmd.Flags().String("notes", "", "Reason for the rejection")
}
