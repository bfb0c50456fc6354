package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/model"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage the categories of the current board",
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories with their backlog counts",
	Args:    cobra.NoArgs,
	RunE:    runCategoryList,
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Long: `Add a category to the current board.

Examples:
  ironboard category add "Design"
  ironboard category add "Ops" --color "#14b8a6"`,
	Args: cobra.ExactArgs(1),
	RunE: runCategoryAdd,
}

var categoryRemoveCmd = &cobra.Command{
	Use:     "remove [category]",
	Aliases: []string{"rm"},
	Short:   "Remove a category",
	Long: `Remove a category by id or name. Tasks in it show under General
until 'ironboard backfill' rewrites them.`,
	Args: cobra.ExactArgs(1),
	RunE: runCategoryRemove,
}

var categoryColor string

func init() {
	categoryAddCmd.Flags().StringVarP(&categoryColor, "color", "c", model.DefaultCategoryColor, "Category color (hex)")

	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryRemoveCmd)
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	_, view, err := sess.current()
	if err != nil {
		return err
	}
	counted := view.CategoryCounts()
	rows := make([][]string, 0, len(counted))
	for _, c := range counted {
		rows = append(rows, []string{c.ID, c.Name, c.Color, fmt.Sprint(c.Count)})
	}
	newPrinter(cmd.OutOrStdout()).table([]string{"ID", "Name", "Color", "Backlog"}, rows)
	return nil
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, _, err := sess.current()
	if err != nil {
		return err
	}
	c, err := sess.Boards.AddCategory(cmd.Context(), entry.Board, args[0], categoryColor)
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Added category: %s (id: %s)", c.Name, c.ID)
	return nil
}

func runCategoryRemove(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, _, err := sess.current()
	if err != nil {
		return err
	}
	c, ok := findCategory(entry.Board.Categories, args[0])
	if !ok {
		return fmt.Errorf("category not found: %s", args[0])
	}
	if err := sess.Boards.RemoveCategory(cmd.Context(), entry.Board, c.ID); err != nil {
		return fmt.Errorf("failed to remove category: %w", err)
	}
	newPrinter(cmd.OutOrStdout()).success("Removed category: %s", c.Name)
	return nil
}

// findCategory looks ref up by id first, then by name
func findCategory(cats []model.Category, ref string) (model.Category, bool) {
	normalized := category.Normalize(cats)
	if c, ok := category.Find(normalized, model.ByID(ref)); ok {
		return c, true
	}
	return category.Find(normalized, model.ByName(ref))
}
