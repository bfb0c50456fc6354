package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/existflow/ironboard/internal/db"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/tui"
)

// watchPollInterval is how often the local database is checked for writes
// made by other ironboard processes
const watchPollInterval = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the current board live",
	Long: `Open a live view of the current board. Changes made by other
collaborators, or by other ironboard commands, show up as they happen.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if database, ok := sess.store.(*db.DB); ok {
		go database.Watch(ctx, watchPollInterval)
		defer cancel()
	}

	m := tui.NewModel(ctx, sess.Session, appLog)
	defer m.Close()

	appLog.Info("Starting TUI")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		appLog.Error("TUI exited with error", logger.Err(err))
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
