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

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Submit and decide QA samples",
}

var sampleSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the next sample of a batch for QA",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		notes, _ := cmd.Flags().GetString("notes")
		requestKey, _ := cmd.Flags().GetString("request-key")

		sampleID, err := app.Batches.SubmitSample(ctx, batch.SubmitSampleInput{
			Actor:      currentActor(),
			BatchID:    batchID,
			Notes:      notes,
			RequestKey: requestKey,
		})
		if err != nil {
			return errs.Wrap(err, "submit sample")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "submitted sample: %s\n", sampleID); err != nil {
			return errs.Wrap(err, "write submit output")
		}
		return nil
	}),
}

var sampleDecideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Approve or deny a pending sample",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		sampleID, _ := cmd.Flags().GetString("sample")
		result, _ := cmd.Flags().GetString("result")
		notes, _ := cmd.Flags().GetString("notes")
		requestKey, _ := cmd.Flags().GetString("request-key")

		if err := app.Batches.DecideSample(ctx, batch.DecideSampleInput{
			Actor:      currentActor(),
			BatchID:    batchID,
			SampleID:   sampleID,
			Result:     result,
			Notes:      notes,
			RequestKey: requestKey,
		}); err != nil {
			return errs.Wrap(err, "decide sample")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "sample %s %s\n", sampleID, result); err != nil {
			return errs.Wrap(err, "write decide output")
		}
		return nil
	}),
}

var sampleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the samples of a batch by attempt",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		batchID, _ := cmd.Flags().GetString("batch")
		samples, err := app.Batches.ListSamples(ctx, batchID)
		if err != nil {
			return errs.Wrap(err, "list samples")
		}

		out := cmd.OutOrStdout()
		if len(samples) == 0 {
			_, err := fmt.Fprintln(out, "no samples")
			return err
		}
		for _, sample := range samples {
			qa := sample.QAID
			if qa == "" {
				qa = "-"
			}
			if _, err := fmt.Fprintf(out, "#%d\t%s\t%s\tby=%s\tqa=%s\t%s\n",
				sample.Attempt, sample.SampleID, sample.Result, sample.SubmitterID, qa, sample.Notes); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.AddCommand(sampleSubmitCmd)
	sampleCmd.AddCommand(sampleDecideCmd)
	sampleCmd.AddCommand(sampleListCmd)

	sampleSubmitCmd.Flags().String("batch", "", "Batch id")
	sampleSubmitCmd.Flags().String("notes", "", "Submission notes")
	sampleSubmitCmd.Flags().String("request-key", "", "Client key that makes retries safe")
	_ = sampleSubmitCmd.MarkFlagRequired("batch")

	sampleDecideCmd.Flags().String("batch", "", "Batch id")
	sampleDecideCmd.Flags().String("sample", "", "Sample id")
	sampleDecideCmd.Flags().String("result", "", "Decision (approved|denied)")
	sampleDecideCmd.Flags().String("notes", "", "Decision notes, required when denying")
	sampleDecideCmd.Flags().String("request-key", "", "Client key that makes retries safe")
	_ = sampleDecideCmd.MarkFlagRequired("batch")
	_ = sampleDecideCmd.MarkFlagRequired("sample")
	_ = sampleDecideCmd.MarkFlagRequired("result")

	sampleListCmd.Flags().String("batch", "", "Batch id")
	_ = sampleListCmd.MarkFlagRequired("batch")
}
