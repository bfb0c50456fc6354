package ordering

import (
	"testing"
	"time"

	"github.com/existflow/ironboard/internal/model"
)

func task(id string, stage model.Stage, order *int) model.Task {
	return model.Task{ID: id, Status: stage, Order: order}
}

func TestNextOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		tasks []model.Task
		want  int
	}{
		{"empty stage", nil, 0},
		{"dense", []model.Task{task("a", model.StageReady, model.IntPtr(0)), task("b", model.StageReady, model.IntPtr(1))}, 2},
		{"gaps", []model.Task{task("a", model.StageReady, model.IntPtr(7)), task("b", model.StageReady, model.IntPtr(2))}, 8},
		{"absent reads as zero", []model.Task{task("a", model.StageReady, nil)}, 1},
		{"negative", []model.Task{task("a", model.StageReady, model.IntPtr(-5))}, -4},
	}
	for _, tc := range cases {
		if got := NextOrder(tc.tasks); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestNextOrderExceedsExisting(t *testing.T) {
	t.Parallel()

	for n := 0; n < 20; n++ {
		var tasks []model.Task
		for i := 0; i < n; i++ {
			tasks = append(tasks, task("", model.StageReview, model.IntPtr((i*7)%11)))
		}
		next := NextOrder(tasks)
		for _, tk := range tasks {
			if next <= *tk.Order {
				t.Fatalf("n=%d: next %d not above %d", n, next, *tk.Order)
			}
		}
	}
}

func TestNextCategoryOrder(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		{Status: model.StageBacklog, CategoryOrder: model.IntPtr(3)},
		{Status: model.StageBacklog},
	}
	if got := NextCategoryOrder(tasks); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := NextCategoryOrder(nil); got != 0 {
		t.Fatalf("expected 0 for empty category, got %d", got)
	}
}

func TestInCategoryUsesResolution(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "bug", Name: "Bug"}}
	tasks := []model.Task{
		{ID: "1", Status: model.StageBacklog, CategoryID: "bug"},
		{ID: "2", Status: model.StageBacklog, CategoryID: "gone"},
		{ID: "3", Status: model.StageReady, CategoryID: "bug"},
	}
	bugs := InCategory(tasks, model.Category{ID: "bug"}, cats)
	if len(bugs) != 1 || bugs[0].ID != "1" {
		t.Fatalf("unexpected bug tasks %+v", bugs)
	}
	general := InCategory(tasks, model.GeneralCategory(), cats)
	if len(general) != 1 || general[0].ID != "2" {
		t.Fatalf("unexpected general tasks %+v", general)
	}
}

func TestMoveStampsCompletion(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Move(model.Task{ID: "t1", Status: model.StageQA}, model.StageDone, 3, now)
	if p.CompletedAt == nil || !p.CompletedAt.Equal(now) {
		t.Fatalf("expected completedAt stamped, got %v", p.CompletedAt)
	}
	fields := p.Fields()
	if fields["status"] != "done" || fields["order"] != 3 {
		t.Fatalf("unexpected fields %v", fields)
	}

	done := model.NewTimestamp(now.Add(-time.Hour))
	p = Move(model.Task{ID: "t1", Status: model.StageDone, CompletedAt: &done}, model.StageDone, 0, now)
	if p.CompletedAt != nil {
		t.Fatalf("existing completion should be kept")
	}

	p = Move(model.Task{ID: "t1", Status: model.StageDone, CompletedAt: &done}, model.StageReady, 0, now)
	if _, ok := p.Fields()["completedAt"]; ok {
		t.Fatalf("moving out of done must not touch completedAt")
	}
}

func TestPatchApply(t *testing.T) {
	t.Parallel()

	orig := model.Task{ID: "t", Status: model.StageReady, Order: model.IntPtr(4)}
	got := Patch{Status: model.StageReview, Order: model.IntPtr(0)}.Apply(orig)
	if got.Status != model.StageReview || *got.Order != 0 {
		t.Fatalf("unexpected %+v", got)
	}
	if *orig.Order != 4 {
		t.Fatalf("original mutated")
	}
}

func TestReorderAssignsIndex(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		task("c", model.StageInProgress, model.IntPtr(9)),
		task("a", model.StageInProgress, nil),
		task("b", model.StageInProgress, model.IntPtr(9)),
	}
	patches := Reorder(model.StageInProgress, tasks, nil)
	if len(patches) != 3 {
		t.Fatalf("expected 3 patches, got %d", len(patches))
	}
	for i, p := range patches {
		if p.TaskID != tasks[i].ID || *p.Order != i {
			t.Fatalf("patch %d: %+v", i, p)
		}
		if p.CategoryOrder != nil {
			t.Fatalf("non-backlog reorder must not set categoryOrder")
		}
	}
}

func TestReorderBacklogPerCategory(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "bug", Name: "Bug"}, {ID: "feat", Name: "Feature"}}
	seq := []model.Task{
		{ID: "1", Status: model.StageBacklog, CategoryID: "bug"},
		{ID: "2", Status: model.StageBacklog, CategoryID: "feat"},
		{ID: "3", Status: model.StageBacklog},
		{ID: "4", Status: model.StageBacklog, CategoryName: "bug"},
		{ID: "5", Status: model.StageBacklog, CategoryID: "feat"},
		{ID: "6", Status: model.StageBacklog, CategoryID: "stale"},
	}
	want := map[string][2]int{
		"1": {0, 0},
		"2": {1, 0},
		"3": {2, 0},
		"4": {3, 1},
		"5": {4, 1},
		"6": {5, 1},
	}
	for _, p := range Reorder(model.StageBacklog, seq, cats) {
		w := want[p.TaskID]
		if *p.Order != w[0] || *p.CategoryOrder != w[1] {
			t.Fatalf("task %s: expected order=%d categoryOrder=%d, got %d/%d",
				p.TaskID, w[0], w[1], *p.Order, *p.CategoryOrder)
		}
	}
}

func TestReorderSkipsMissingIDs(t *testing.T) {
	t.Parallel()

	patches := Reorder(model.StageReady, []model.Task{{}, {ID: "x"}}, nil)
	if len(patches) != 1 || *patches[0].Order != 1 {
		t.Fatalf("unexpected %+v", patches)
	}
}

func TestSortByStageThenRank(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "bug", Name: "Bug"}, {ID: "arch", Name: "Architecture"}}
	tasks := []model.Task{
		{ID: "done", Status: model.StageDone, Order: model.IntPtr(0)},
		{ID: "r2", Status: model.StageReady, Order: model.IntPtr(2)},
		{ID: "r1", Status: model.StageReady, Order: model.IntPtr(1)},
		{ID: "gen", Status: model.StageBacklog, CategoryOrder: model.IntPtr(0)},
		{ID: "bug1", Status: model.StageBacklog, CategoryID: "bug", CategoryOrder: model.IntPtr(1)},
		{ID: "bug0", Status: model.StageBacklog, CategoryID: "bug", Order: model.IntPtr(0)},
		{ID: "arch", Status: model.StageBacklog, CategoryID: "arch", Order: model.IntPtr(9)},
	}
	got := Sort(tasks, cats)
	want := []string{"arch", "bug0", "bug1", "gen", "r1", "r2", "done"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if tasks[0].ID != "done" {
		t.Fatalf("input reordered")
	}
}

func TestSortStableOnTies(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		task("x", model.StageReview, model.IntPtr(1)),
		task("y", model.StageReview, model.IntPtr(1)),
		task("z", model.StageReview, nil),
		task("w", model.StageReview, model.IntPtr(0)),
	}
	got := Sort(tasks, nil)
	want := []string{"z", "w", "x", "y"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}
