package ordering

import (
	"sort"
	"strings"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/model"
)

// Less orders two tasks for display.
// Stage rank comes first. Inside the Backlog tasks group by resolved category
// name and then by categoryOrder, falling back to order; other stages use
// order alone. Absent ranks read as 0.
func Less(a, b model.Task, normalized []model.Category) bool {
	ra, rb := a.Status.Rank(), b.Status.Rank()
	if ra != rb {
		return ra < rb
	}
	if a.Status != model.StageBacklog {
		return a.OrderValue() < b.OrderValue()
	}
	na := strings.ToLower(category.Resolve(a, normalized).Name)
	nb := strings.ToLower(category.Resolve(b, normalized).Name)
	if na != nb {
		return na < nb
	}
	return a.BacklogRank() < b.BacklogRank()
}

// Sort returns a sorted copy of tasks. Ties keep snapshot order.
func Sort(tasks []model.Task, boardCategories []model.Category) []model.Task {
	normalized := category.Normalize(boardCategories)
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j], normalized)
	})
	return out
}
