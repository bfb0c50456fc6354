package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/existflow/ironboard/internal/board"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"t"},
	Short:   "Manage tasks on the current board",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title...]",
	Short: "Add a task",
	Long: `Add a task to the current board. It goes to the end of its column,
and to the end of its category when it lands in the Backlog.

Examples:
  ironboard task add Fix login redirect -c Bug
  ironboard task add "Write docs" -s ready -a ana@example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks by column",
	Args:    cobra.NoArgs,
	RunE:    runTaskList,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move [task-id] [stage]",
	Short: "Move a task to another stage",
	Long: `Move a task to a stage. Without --order the task goes to the end of
the target column.

Stages: backlog, ready, in-progress, review, qa, done`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskMove,
}

var taskReorderCmd = &cobra.Command{
	Use:   "reorder [stage] [task-id...]",
	Short: "Put tasks at the top of a column in the given order",
	Long: `Renumber a column. The listed tasks come first, in the order given;
the rest of the column keeps its current order after them.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTaskReorder,
}

var taskDoneCmd = &cobra.Command{
	Use:     "done [task-id]",
	Aliases: []string{"complete"},
	Short:   "Mark a task as done",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskDone,
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskDelete,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var (
	taskDesc      string
	taskCategory  string
	taskStage     string
	taskAssignees []string

	moveOrder int

	editTitle string

	listStage    string
	listCategory string
	listDone     bool
)

func init() {
	taskAddCmd.Flags().StringVarP(&taskDesc, "desc", "d", "", "Task description")
	taskAddCmd.Flags().StringVarP(&taskCategory, "category", "c", "", "Category id or name (default General)")
	taskAddCmd.Flags().StringVarP(&taskStage, "stage", "s", "", "Stage (default backlog)")
	taskAddCmd.Flags().StringSliceVarP(&taskAssignees, "assignee", "a", nil, "Assignee (repeatable)")

	taskMoveCmd.Flags().IntVar(&moveOrder, "order", 0, "Rank in the target column")

	taskEditCmd.Flags().StringVarP(&editTitle, "title", "t", "", "New title")
	taskEditCmd.Flags().StringVarP(&taskDesc, "desc", "d", "", "New description")
	taskEditCmd.Flags().StringVarP(&taskCategory, "category", "c", "", "New category id or name")
	taskEditCmd.Flags().StringSliceVarP(&taskAssignees, "assignee", "a", nil, "Assignees, replacing the current ones")

	taskListCmd.Flags().StringVarP(&listStage, "stage", "s", "", "Only show this stage")
	taskListCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Only show backlog tasks in this category")
	taskListCmd.Flags().BoolVar(&listDone, "done", false, "Show completed tasks")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskReorderCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskEditCmd)
}

func parseStage(v string) (model.Stage, error) {
	st, ok := model.ParseStage(strings.TrimSpace(v))
	if !ok {
		return "", fmt.Errorf("%w: %q", board.ErrInvalidStage, v)
	}
	return st, nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	in := board.TaskInput{
		Title:       strings.Join(args, " "),
		Description: taskDesc,
		Assignees:   taskAssignees,
	}
	if taskStage != "" {
		st, err := parseStage(taskStage)
		if err != nil {
			return err
		}
		in.Status = st
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, _, err := sess.current()
	if err != nil {
		return err
	}
	if taskCategory != "" {
		if c, ok := findCategory(entry.Board.Categories, taskCategory); ok {
			in.Category = model.ByID(c.ID)
		} else {
			in.Category = model.ByName(taskCategory)
		}
	}

	task, found, err := sess.AddTask(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}
	p := newPrinter(cmd.OutOrStdout())
	if !found {
		p.success("Added task %s: %s", shortID(task.ID), task.Title)
		p.warn("the task has not shown up on the board yet")
		return nil
	}
	p.success("Added task %s: %s [%s, %s]", shortID(task.ID), task.Title, task.Status.Name(), task.Category.Name)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var stage model.Stage
	if listStage != "" {
		st, err := parseStage(listStage)
		if err != nil {
			return err
		}
		stage = st
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}

	catID := ""
	if listCategory != "" {
		c, ok := findCategory(entry.Board.Categories, listCategory)
		if !ok {
			return fmt.Errorf("category not found: %s", listCategory)
		}
		catID = c.ID
	}

	p := newPrinter(cmd.OutOrStdout())
	p.heading(entry.Board.Name)
	for _, col := range listColumns(view, stage, catID, listDone) {
		p.printColumn(col.Stage, col.Tasks)
	}
	return nil
}

// listColumns picks the columns to print. A category narrows the Backlog
// and, without an explicit stage, shows only the Backlog.
func listColumns(view *reconcile.View, stage model.Stage, catID string, done bool) []reconcile.Column {
	if stage == "" && catID != "" {
		stage = model.StageBacklog
	}
	column := func(st model.Stage) reconcile.Column {
		if st == model.StageBacklog {
			return reconcile.Column{Stage: st, Tasks: view.Backlog(catID)}
		}
		return reconcile.Column{Stage: st, Tasks: view.Column(st)}
	}
	if stage != "" {
		return []reconcile.Column{column(stage)}
	}
	out := make([]reconcile.Column, 0, len(model.Stages))
	for _, st := range model.BoardColumns {
		out = append(out, column(st))
	}
	if done {
		out = append(out, column(model.StageDone))
	}
	return out
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	stage, err := parseStage(args[1])
	if err != nil {
		return err
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	task, err := resolveTask(view, args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("order") {
		err = sess.Boards.MoveTask(cmd.Context(), entry.Board.ID, task.Task, stage, moveOrder)
	} else {
		err = sess.Boards.MoveTaskToEnd(cmd.Context(), entry.Board.ID, task.Task, stage, sess.Snapshot())
	}
	if err != nil {
		return fmt.Errorf("failed to move task: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Moved %s to %s", task.Title, stage.Name())
	return nil
}

func runTaskReorder(cmd *cobra.Command, args []string) error {
	stage, err := parseStage(args[0])
	if err != nil {
		return err
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	column := view.Column(stage)
	first := make([]string, 0, len(args)-1)
	for _, ref := range args[1:] {
		t, err := resolveTask(view, ref)
		if err != nil {
			return err
		}
		if t.Status != stage {
			return fmt.Errorf("task %s is in %s, not %s", shortID(t.ID), t.Status.Name(), stage.Name())
		}
		first = append(first, t.ID)
	}

	seq := reorderSequence(column, first)
	if err := sess.Boards.ReorderColumn(cmd.Context(), entry.Board, stage, seq); err != nil {
		return fmt.Errorf("failed to reorder: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Reordered %s (%d tasks)", stage.Name(), len(seq))
	return nil
}

// reorderSequence puts the tasks named by first at the front, in that
// order, followed by the rest of column in its current order
func reorderSequence(column []reconcile.ResolvedTask, first []string) []model.Task {
	byID := make(map[string]model.Task, len(column))
	for _, t := range column {
		byID[t.ID] = t.Task
	}
	placed := make(map[string]bool, len(first))
	out := make([]model.Task, 0, len(column))
	for _, id := range first {
		t, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, t)
	}
	for _, t := range column {
		if !placed[t.ID] {
			out = append(out, t.Task)
		}
	}
	return out
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	task, err := resolveTask(view, args[0])
	if err != nil {
		return err
	}
	p := newPrinter(cmd.OutOrStdout())
	if task.IsDone() {
		p.printf("Task already done: %s\n", task.Title)
		return nil
	}
	if err := sess.Boards.MoveTaskToEnd(cmd.Context(), entry.Board.ID, task.Task, model.StageDone, sess.Snapshot()); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	p.success("Completed: %s", task.Title)
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	task, err := resolveTask(view, args[0])
	if err != nil {
		return err
	}
	if err := sess.Boards.DeleteTask(cmd.Context(), entry.Board.ID, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Deleted: %s", task.Title)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, view, err := sess.current()
	if err != nil {
		return err
	}
	task, err := resolveTask(view, args[0])
	if err != nil {
		return err
	}

	var upd board.TaskUpdate
	flags := cmd.Flags()
	if flags.Changed("title") {
		upd.Title = &editTitle
	}
	if flags.Changed("desc") {
		upd.Description = &taskDesc
	}
	if flags.Changed("assignee") {
		assignees := append([]string{}, taskAssignees...)
		upd.Assignees = &assignees
	}
	if flags.Changed("category") {
		c, ok := findCategory(entry.Board.Categories, taskCategory)
		if !ok {
			return fmt.Errorf("category not found: %s", taskCategory)
		}
		upd.Category = &c
	}
	if upd == (board.TaskUpdate{}) {
		return errNothingToChange
	}

	if err := sess.Boards.UpdateTask(cmd.Context(), entry.Board.ID, task.Task, upd); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Updated task %s", shortID(task.ID))
	return nil
}
