/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
)

var (
	cfgFile   string
	actorID   string
	actorRole string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "batchtrack",
	Short:        "Batch and QA sample lifecycle tracker",
	Long:         "Track mixing batches through QA sampling, approval and archive. Backed by GORM (SQLite or PostgreSQL).",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "batchtrack"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// currentActor is the identity passed with --actor/--role.
func currentActor() domainbatch.Actor {
	return domainbatch.Actor{ID: actorID, Role: domainbatch.Role(actorRole)}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "", "Acting user id")
	rootCmd.PersistentFlags().StringVar(&actorRole, "role", "", "Acting user role (processor|qa|admin)")
}
