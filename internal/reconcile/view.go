package reconcile

import (
	"sort"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/ordering"
)

// ResolvedTask is a task paired with the category it displays under
type ResolvedTask struct {
	model.Task
	Category model.Category
	// Repaired is set when the stored reference did not resolve and the
	// task was moved to General for display.
	Repaired bool
}

// Column is one workflow column of a view
type Column struct {
	Stage model.Stage
	Tasks []ResolvedTask
}

// View is the derived, sorted state of one board. Views are immutable once
// published; consumers must copy before changing anything.
type View struct {
	Seq        uint64
	BoardID    string
	Categories []model.Category
	Tasks      []ResolvedTask
	Counts     map[string]int
	Err        error
}

// Derive builds the view of board from a raw task snapshot.
// It repairs unresolvable category references to General and a missing
// status to Backlog in the view only; the input is never changed.
func Derive(board model.Board, tasks []model.Task) *View {
	normalized := append([]model.Category(nil), category.Normalize(board.Categories)...)
	general := category.General(normalized)
	if general.Color == "" {
		general.Color = model.DefaultCategoryColor
	}

	working := make([]model.Task, 0, len(tasks))
	out := make([]ResolvedTask, 0, len(tasks))
	for _, t := range tasks {
		t = t.Clone()
		if t.Status == "" {
			t.Status = model.StageBacklog
		}
		resolved, ok := category.Lookup(t, normalized)
		if !ok {
			resolved = general
			t.CategoryID = general.ID
			t.CategoryName = general.Name
			t.CategoryColor = general.Color
			t.LegacyCategory = nil
		}
		working = append(working, t)
		out = append(out, ResolvedTask{Task: t, Category: resolved, Repaired: !ok})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ordering.Less(out[i].Task, out[j].Task, normalized)
	})

	return &View{
		BoardID:    board.ID,
		Categories: normalized,
		Tasks:      out,
		Counts:     category.Counts(working, normalized),
	}
}

// Empty is the view published when there is no board or the query failed
func Empty(boardID string, err error) *View {
	return &View{
		BoardID:    boardID,
		Categories: category.Normalize(nil),
		Tasks:      []ResolvedTask{},
		Counts:     category.Counts(nil, nil),
		Err:        err,
	}
}

// Column returns the tasks of stage in display order.
// Done is ordered by completion time, newest first.
func (v *View) Column(stage model.Stage) []ResolvedTask {
	if v == nil {
		return nil
	}
	if stage == model.StageDone {
		return v.Done()
	}
	var out []ResolvedTask
	for _, t := range v.Tasks {
		if t.Status == stage {
			out = append(out, t)
		}
	}
	return out
}

// Backlog returns the Backlog column, narrowed to one category when
// categoryID is set.
func (v *View) Backlog(categoryID string) []ResolvedTask {
	tasks := v.Column(model.StageBacklog)
	if categoryID == "" {
		return tasks
	}
	var out []ResolvedTask
	for _, t := range tasks {
		if category.Equals(t.Category.ID, categoryID) {
			out = append(out, t)
		}
	}
	return out
}

// Done returns completed tasks, most recently completed first
func (v *View) Done() []ResolvedTask {
	if v == nil {
		return nil
	}
	var out []ResolvedTask
	for _, t := range v.Tasks {
		if t.IsDone() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedMillis() > out[j].CompletedMillis()
	})
	return out
}

// Columns returns every board column in stage order
func (v *View) Columns() []Column {
	out := make([]Column, 0, len(model.BoardColumns))
	for _, st := range model.BoardColumns {
		out = append(out, Column{Stage: st, Tasks: v.Column(st)})
	}
	return out
}

// Task finds a task by id
func (v *View) Task(id string) (ResolvedTask, bool) {
	if v == nil || id == "" {
		return ResolvedTask{}, false
	}
	for _, t := range v.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return ResolvedTask{}, false
}

// CategoryCounts pairs every category with its backlog count
func (v *View) CategoryCounts() []category.Counted {
	if v == nil {
		return nil
	}
	return category.WithCounts(v.Categories, v.Counts)
}

// Repairs lists tasks displayed under General because their reference is gone
func (v *View) Repairs() []ResolvedTask {
	if v == nil {
		return nil
	}
	var out []ResolvedTask
	for _, t := range v.Tasks {
		if t.Repaired {
			out = append(out, t)
		}
	}
	return out
}
