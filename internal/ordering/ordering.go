// Package ordering computes rank values for tasks on a board.
//
// Ranks are comparison keys, not positions: gaps are tolerated and only an
// explicit reorder renumbers a column. Nothing here fails on malformed rank
// data; absent values degrade to defined defaults.
package ordering

import (
	"time"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/model"
)

// InStage returns the tasks whose status is stage, preserving order
func InStage(tasks []model.Task, stage model.Stage) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Status == stage {
			out = append(out, t)
		}
	}
	return out
}

// InCategory returns the Backlog tasks resolving to cat
func InCategory(tasks []model.Task, cat model.Category, boardCategories []model.Category) []model.Task {
	normalized := category.Normalize(boardCategories)
	var out []model.Task
	for _, t := range tasks {
		if t.Status != model.StageBacklog {
			continue
		}
		if category.Equals(category.Resolve(t, normalized).ID, cat.ID) {
			out = append(out, t)
		}
	}
	return out
}

// NextOrder returns one past the highest order among tasks, 0 for none.
// Absent orders count as 0.
func NextOrder(tasksInStage []model.Task) int {
	if len(tasksInStage) == 0 {
		return 0
	}
	highest := tasksInStage[0].OrderValue()
	for _, t := range tasksInStage[1:] {
		if v := t.OrderValue(); v > highest {
			highest = v
		}
	}
	return highest + 1
}

// NextCategoryOrder returns one past the highest categoryOrder among tasks.
// Absent values count as 0.
func NextCategoryOrder(tasksInCategory []model.Task) int {
	highest := -1
	for i, t := range tasksInCategory {
		v := 0
		if t.CategoryOrder != nil {
			v = *t.CategoryOrder
		}
		if i == 0 || v > highest {
			highest = v
		}
	}
	return highest + 1
}

// Patch is the set of rank fields an operation changes on one task
type Patch struct {
	TaskID        string
	Status        model.Stage
	Order         *int
	CategoryOrder *int
	CompletedAt   *time.Time
}

// Fields renders the patch in store document field names
func (p Patch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Status != "" {
		fields["status"] = string(p.Status)
	}
	if p.Order != nil {
		fields["order"] = *p.Order
	}
	if p.CategoryOrder != nil {
		fields["categoryOrder"] = *p.CategoryOrder
	}
	if p.CompletedAt != nil {
		fields["completedAt"] = model.NewTimestamp(*p.CompletedAt)
	}
	return fields
}

// Move produces the update for a cross-column move.
// Moving to Done stamps completedAt when the task has none; moving out of
// Done leaves completedAt alone. Tasks left behind keep their ranks.
func Move(task model.Task, stage model.Stage, order int, now time.Time) Patch {
	p := Patch{
		TaskID: task.ID,
		Status: stage,
		Order:  model.IntPtr(order),
	}
	if stage == model.StageDone && task.CompletedAt == nil {
		stamp := now
		p.CompletedAt = &stamp
	}
	return p
}

// Apply returns a copy of task with the patch applied
func (p Patch) Apply(task model.Task) model.Task {
	out := task.Clone()
	if p.Status != "" {
		out.Status = p.Status
	}
	if p.Order != nil {
		out.Order = model.IntPtr(*p.Order)
	}
	if p.CategoryOrder != nil {
		out.CategoryOrder = model.IntPtr(*p.CategoryOrder)
	}
	if p.CompletedAt != nil {
		ts := model.NewTimestamp(*p.CompletedAt)
		out.CompletedAt = &ts
	}
	return out
}

// Reorder assigns order = index over the caller's final sequence.
// For the Backlog it also assigns categoryOrder as a running counter per
// resolved category, so each category's order is a sub-sequence of the
// column order. Tasks without an id are skipped but still take a slot.
func Reorder(stage model.Stage, tasks []model.Task, boardCategories []model.Category) []Patch {
	normalized := category.Normalize(boardCategories)
	perCategory := map[string]int{}
	patches := make([]Patch, 0, len(tasks))
	for i, t := range tasks {
		p := Patch{TaskID: t.ID, Order: model.IntPtr(i)}
		if stage == model.StageBacklog {
			key := category.Resolve(t, normalized).ID
			p.CategoryOrder = model.IntPtr(perCategory[key])
			perCategory[key]++
		}
		if t.ID == "" {
			continue
		}
		patches = append(patches, p)
	}
	return patches
}
