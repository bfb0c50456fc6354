package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/existflow/ironboard/internal/board"
	"github.com/existflow/ironboard/internal/config"
	"github.com/existflow/ironboard/internal/model"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage boards",
	Long:  `Create, list, select and share boards.`,
}

var boardListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the boards you own or collaborate on",
	Args:    cobra.NoArgs,
	RunE:    runBoardList,
}

var boardNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a new board",
	Long: `Create a new board owned by you. New boards start with the default
categories and become the current board.

Examples:
  ironboard board new "Launch"
  ironboard board new "Launch" --collab ana@example.com --collab bo@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runBoardNew,
}

var boardUseCmd = &cobra.Command{
	Use:   "use [board]",
	Short: "Select the current board",
	Long:  `Select the board other commands work on. The board may be given by id, id prefix or name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardUse,
}

var boardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current board",
	Args:  cobra.NoArgs,
	RunE:  runBoardShow,
}

var boardRenameCmd = &cobra.Command{
	Use:   "rename [name]",
	Short: "Rename the current board",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardRename,
}

var boardDeleteCmd = &cobra.Command{
	Use:     "delete [board]",
	Aliases: []string{"rm"},
	Short:   "Delete a board you own",
	Args:    cobra.ExactArgs(1),
	RunE:    runBoardDelete,
}

var boardCollabCmd = &cobra.Command{
	Use:   "collab",
	Short: "Manage collaborators of the current board",
}

var boardCollabAddCmd = &cobra.Command{
	Use:   "add [email...]",
	Short: "Share the current board",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCollabAdd,
}

var boardCollabRemoveCmd = &cobra.Command{
	Use:     "remove [email...]",
	Aliases: []string{"rm"},
	Short:   "Stop sharing the current board",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runCollabRemove,
}

var boardCollabs []string

func init() {
	boardNewCmd.Flags().StringSliceVar(&boardCollabs, "collab", nil, "Collaborator email (repeatable)")

	boardCollabCmd.AddCommand(boardCollabAddCmd)
	boardCollabCmd.AddCommand(boardCollabRemoveCmd)

	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardNewCmd)
	boardCmd.AddCommand(boardUseCmd)
	boardCmd.AddCommand(boardShowCmd)
	boardCmd.AddCommand(boardRenameCmd)
	boardCmd.AddCommand(boardDeleteCmd)
	boardCmd.AddCommand(boardCollabCmd)
}

func runBoardList(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	p := newPrinter(cmd.OutOrStdout())
	st := sess.Membership.State()
	if len(st.Boards) == 0 {
		p.println("No boards found.")
		return nil
	}

	rows := make([][]string, 0, len(st.Boards))
	for _, e := range st.Boards {
		mark := ""
		if e.Board.ID == st.SelectedID {
			mark = "*"
		}
		role := "collaborator"
		if e.IsOwner {
			role = "owner"
		}
		rows = append(rows, []string{mark, shortID(e.Board.ID), e.Board.Name, role, fmt.Sprint(len(e.Board.Collaborators))})
	}
	p.table([]string{"", "ID", "Name", "Role", "Collaborators"}, rows)
	return nil
}

func runBoardNew(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	collabs := make([]model.CollaboratorInput, 0, len(boardCollabs))
	for _, email := range boardCollabs {
		collabs = append(collabs, model.EmailInput(email))
	}
	id, err := sess.Boards.CreateBoard(cmd.Context(), sess.User, board.BoardInput{Name: args[0], Collaborators: collabs})
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	config.NewState(cfg.Dir(), appLog).SetLastBoard(id)

	newPrinter(cmd.OutOrStdout()).success("Created board: %s (id: %s)", strings.TrimSpace(args[0]), shortID(id))
	return nil
}

func runBoardUse(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := resolveBoard(sess.Membership.State().Boards, args[0])
	if err != nil {
		return err
	}
	if err := sess.SelectBoard(entry.Board.ID); err != nil {
		return fmt.Errorf("failed to select board: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Now using board: %s", entry.Board.Name)
	return nil
}

func runBoardShow(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	b := entry.Board
	p := newPrinter(cmd.OutOrStdout())

	p.heading(b.Name)
	p.printf("  id:            %s\n", b.ID)
	owner := b.Owner
	if b.OwnerEmail != "" {
		owner = b.OwnerEmail
	}
	p.printf("  owner:         %s\n", owner)
	if len(b.Collaborators) == 0 {
		p.printf("  collaborators: %s\n", p.render(mutedStyle, "none"))
	} else {
		p.printf("  collaborators: %s\n", strings.Join(b.Collaborators, ", "))
	}

	rows := make([][]string, 0, len(model.Stages))
	for _, col := range view.Columns() {
		rows = append(rows, []string{col.Stage.Name(), fmt.Sprint(len(col.Tasks))})
	}
	rows = append(rows, []string{model.StageDone.Name(), fmt.Sprint(len(view.Done()))})
	p.println("")
	p.table([]string{"Stage", "Tasks"}, rows)

	if repairs := view.Repairs(); len(repairs) > 0 {
		p.warn("%d task(s) point at missing categories; run 'ironboard backfill' to fix them", len(repairs))
	}
	return nil
}

func runBoardRename(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, _, err := sess.current()
	if err != nil {
		return err
	}
	name := args[0]
	if err := sess.Boards.UpdateBoard(cmd.Context(), sess.User, entry.Board, board.BoardUpdate{Name: &name}); err != nil {
		return fmt.Errorf("failed to rename board: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Renamed board to: %s", strings.TrimSpace(name))
	return nil
}

func runBoardDelete(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := resolveBoard(sess.Membership.State().Boards, args[0])
	if err != nil {
		return err
	}
	if err := sess.Boards.DeleteBoard(cmd.Context(), sess.User, entry.Board); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	state := config.NewState(cfg.Dir(), appLog)
	if state.LastBoard() == entry.Board.ID {
		state.ClearLastBoard()
	}
	newPrinter(cmd.OutOrStdout()).success("Deleted board: %s", entry.Board.Name)
	return nil
}

func runCollabAdd(cmd *cobra.Command, args []string) error {
	return editCollabs(cmd, args, nil)
}

func runCollabRemove(cmd *cobra.Command, args []string) error {
	return editCollabs(cmd, nil, args)
}

func editCollabs(cmd *cobra.Command, add, remove []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, _, err := sess.current()
	if err != nil {
		return err
	}
	inputs := collaboratorInputs(entry.Board, add, remove)
	if err := sess.Boards.UpdateBoard(cmd.Context(), sess.User, entry.Board, board.BoardUpdate{Collaborators: &inputs}); err != nil {
		return fmt.Errorf("failed to update collaborators: %w", err)
	}

	emails, _ := board.NormalizeCollaborators(inputs)
	p := newPrinter(cmd.OutOrStdout())
	if len(emails) == 0 {
		p.success("%s is no longer shared", entry.Board.Name)
		return nil
	}
	p.success("%s is shared with: %s", entry.Board.Name, strings.Join(emails, ", "))
	return nil
}

// collaboratorInputs rebuilds the board's collaborator list with add
// appended and remove dropped. Existing metadata is carried over.
func collaboratorInputs(b model.Board, add, remove []string) []model.CollaboratorInput {
	drop := make(map[string]bool, len(remove))
	for _, email := range remove {
		drop[strings.ToLower(strings.TrimSpace(email))] = true
	}
	details := make(map[string]model.Collaborator, len(b.CollaboratorDetails))
	for _, d := range b.CollaboratorDetails {
		details[d.Email] = d
	}

	out := make([]model.CollaboratorInput, 0, len(b.Collaborators)+len(add))
	for _, email := range b.Collaborators {
		if drop[email] {
			continue
		}
		if d, ok := details[email]; ok {
			out = append(out, model.DetailedInput(d))
			continue
		}
		out = append(out, model.EmailInput(email))
	}
	for _, email := range add {
		out = append(out, model.EmailInput(email))
	}
	return out
}
