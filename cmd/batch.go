package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/batch"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Create and inspect batches",
}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new batch in mixing",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		formula, _ := cmd.Flags().GetString("formula")
		deck, _ := cmd.Flags().GetString("deck")
		number, _ := cmd.Flags().GetString("number")

		batchID, err := app.Batches.CreateBatch(ctx, batch.CreateBatchInput{
			Actor:       currentActor(),
			Formula:     formula,
			Deck:        deck,
			BatchNumber: number,
		})
		if err != nil {
			return errs.Wrap(err, "create batch")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created batch: %s\n", batchID); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var batchShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show a batch with its samples and history",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		detail, err := app.Batches.GetBatch(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get batch")
		}
		return printJSON(cmd, detail)
	}),
}

var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches in a view",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawView, _ := cmd.Flags().GetString("view")
		view, err := domainbatch.ParseView(rawView)
		if err != nil {
			return err
		}
		items, err := app.Batches.ListView(ctx, view)
		if err != nil {
			return errs.Wrap(err, "list batches")
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			_, err := fmt.Fprintln(out, "no batches")
			return err
		}
		for _, item := range items {
			if _, err := fmt.Fprintln(out, formatBatch(item)); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func formatBatch(item batch.BatchView) string {
	qa := item.QACurrentID
	if qa == "" {
		qa = "-"
	}
	return fmt.Sprintf("%s\t%s\t%s\t#%s\t%s\tprocessor=%s\tqa=%s\tsamples=%d\tupdated=%s",
		item.BatchID,
		item.Formula,
		item.Deck,
		item.BatchNumber,
		item.Status,
		item.CurrentProcessorID,
		qa,
		item.SampleCount,
		item.LastUpdated.Format(time.RFC3339),
	)
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchCreateCmd)
	batchCmd.AddCommand(batchShowCmd)
	batchCmd.AddCommand(batchListCmd)

	batchCreateCmd.Flags().String("formula", "", "Formula code (letters and digits)")
	batchCreateCmd.Flags().String("deck", "", "Mixing deck")
	batchCreateCmd.Flags().String("number", "", "Batch number")
	_ = batchCreateCmd.MarkFlagRequired("formula")
	_ = batchCreateCmd.MarkFlagRequired("deck")
	_ = batchCreateCmd.MarkFlagRequired("number")

	batchListCmd.Flags().String("view", string(domainbatch.ViewActive), "View to list (active|qa-queue|archive)")
}
