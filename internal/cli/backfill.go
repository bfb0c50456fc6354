package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rewrite task category references on the current board",
	Long: `Tasks whose category was removed are shown under General. Backfill
writes that repair to the store, rewrites legacy category references as
id, name and color, and sets a missing status to Backlog.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var backfillDryRun bool

func init() {
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Only list the tasks that would move to General")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	p := newPrinter(cmd.OutOrStdout())

	if backfillDryRun {
		repairs := view.Repairs()
		if len(repairs) == 0 {
			p.println("All category references resolve.")
			return nil
		}
		rows := make([][]string, 0, len(repairs))
		for _, t := range repairs {
			rows = append(rows, taskRow(t))
		}
		p.table(taskHeaders, rows)
		p.println(fmt.Sprintf("%d task(s) would move to %s", len(repairs), p.render(mutedStyle, "General")))
		return nil
	}

	n, err := sess.Boards.BackfillCategories(cmd.Context(), entry.Board, sess.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to backfill: %w", err)
	}
	if n == 0 {
		p.println("Nothing to backfill.")
		return nil
	}
	p.success("Backfilled %d task(s) on %s", n, entry.Board.Name)
	return nil
}
