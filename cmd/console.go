package cmd

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"batchtrack/internal/bootstrap"
	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/usecase/boardconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleBoardCmd = &cobra.Command{
	Use:   "board",
	Short: "Start the live batch board",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawView, _ := cmd.Flags().GetString("view")
		view, err := domainbatch.ParseView(rawView)
		if err != nil {
			return err
		}

		model := boardconsole.NewBoardModel(ctx, app.Feed, app.Batches, boardconsole.BoardOptions{
			Actor: currentActor(),
			View:  view,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run board console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleBoardCmd)
	consoleBoardCmd.Flags().String("view", string(domainbatch.ViewActive), "Initial view (active|qa-queue|archive)")
}
