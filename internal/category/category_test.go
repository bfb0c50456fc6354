package category

import (
	"reflect"
	"testing"

	"github.com/existflow/ironboard/internal/model"
)

func legacy(name string) *model.CategoryRef {
	ref := model.ByName(name)
	return &ref
}

func TestNormalizePrependsGeneralOnce(t *testing.T) {
	t.Parallel()

	lists := [][]model.Category{
		nil,
		{},
		{{ID: "bug", Name: "Bug"}},
		{{ID: "bug", Name: "Bug"}, {ID: "feat", Name: "Feature"}},
	}
	for _, list := range lists {
		got := Normalize(list)
		if len(got) != len(list)+1 {
			t.Fatalf("expected %d categories, got %d", len(list)+1, len(got))
		}
		if got[0] != model.GeneralCategory() {
			t.Fatalf("expected synthesized General first, got %+v", got[0])
		}
		if !reflect.DeepEqual(got[1:], list) && len(list) > 0 {
			t.Fatalf("expected original entries after General, got %+v", got[1:])
		}
	}
}

func TestNormalizeKeepsExistingGeneral(t *testing.T) {
	t.Parallel()

	variants := []string{"General", "general", "  GENERAL ", "General\t"}
	for _, name := range variants {
		list := []model.Category{{ID: "bug", Name: "Bug"}, {ID: "g1", Name: name}}
		got := Normalize(list)
		if !reflect.DeepEqual(got, list) {
			t.Fatalf("%q: expected list unchanged, got %+v", name, got)
		}
	}
}

func TestEquals(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want bool
	}{
		{"Bug", "bug", true},
		{" bug ", "BUG", true},
		{"bug", "bugs", false},
		{"", "  ", true},
	}
	for _, tc := range cases {
		if got := Equals(tc.a, tc.b); got != tc.want {
			t.Fatalf("Equals(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	cats := Normalize([]model.Category{
		{ID: "bug", Name: "Bug"},
		{ID: "feature", Name: "Feature"},
	})

	cases := []struct {
		name string
		task model.Task
		want string
	}{
		{"by id", model.Task{CategoryID: "BUG"}, "bug"},
		{"stale id falls to name", model.Task{CategoryID: "gone", CategoryName: "feature"}, "feature"},
		{"legacy name", model.Task{LegacyCategory: legacy("Bug")}, "bug"},
		{"legacy slug in name", model.Task{LegacyCategory: legacy("feature")}, "feature"},
		{"legacy embedded", model.Task{LegacyCategory: func() *model.CategoryRef {
			r := model.Embedded(model.Category{ID: "x", Name: "Feature"})
			return &r
		}()}, "feature"},
		{"nothing", model.Task{}, model.GeneralCategoryID},
		{"deleted id", model.Task{CategoryID: "deleted-id"}, model.GeneralCategoryID},
	}
	for _, tc := range cases {
		got := Resolve(tc.task, cats)
		if got.ID != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got.ID)
		}
	}
}

func TestResolveDoesNotMutate(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "bug", Name: "Bug"}}
	task := model.Task{CategoryID: "missing"}
	before := task
	Resolve(task, Normalize(cats))
	Resolve(task, Normalize(cats))
	if !reflect.DeepEqual(task, before) {
		t.Fatalf("task mutated")
	}
	if len(cats) != 1 {
		t.Fatalf("categories mutated")
	}
}

func TestCountsScenario(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "general", Name: "General"}, {ID: "bug", Name: "Bug"}}
	tasks := []model.Task{
		{ID: "1", Status: model.StageBacklog, LegacyCategory: legacy("Bug"), CategoryOrder: model.IntPtr(0)},
		{ID: "2", Status: model.StageBacklog, LegacyCategory: legacy("General"), CategoryOrder: model.IntPtr(0)},
	}
	got := Counts(tasks, cats)
	want := map[string]int{"general": 1, "bug": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCountsInvariants(t *testing.T) {
	t.Parallel()

	cats := []model.Category{{ID: "bug", Name: "Bug"}, {ID: "docs", Name: "Docs"}}
	tasks := []model.Task{
		{Status: model.StageBacklog, CategoryID: "bug"},
		{Status: model.StageBacklog, CategoryID: "deleted-id"},
		{Status: model.StageBacklog},
		{Status: model.StageReady, CategoryID: "bug"},
		{Status: model.StageDone, CategoryID: "docs"},
	}
	got := Counts(tasks, cats)

	normalized := Normalize(cats)
	if len(got) != len(normalized) {
		t.Fatalf("expected %d keys, got %v", len(normalized), got)
	}
	sum := 0
	for _, c := range normalized {
		n, ok := got[c.ID]
		if !ok {
			t.Fatalf("missing key %q", c.ID)
		}
		if n < 0 {
			t.Fatalf("negative count for %q", c.ID)
		}
		sum += n
	}
	if sum != 3 {
		t.Fatalf("expected counts to sum to 3 backlog tasks, got %d", sum)
	}
	if got["docs"] != 0 || got[model.GeneralCategoryID] != 2 || got["bug"] != 1 {
		t.Fatalf("unexpected counts %v", got)
	}
}

func TestSanitizeDedupes(t *testing.T) {
	t.Parallel()

	got := Sanitize([]model.Category{
		{ID: "bug", Name: "Bug"},
		{ID: "", Name: "Nameless"},
		{ID: "bug", Name: "Other"},
		{ID: "bug2", Name: " bug "},
		{ID: "feat", Name: "Feature"},
	})
	want := []model.Category{{ID: "bug", Name: "Bug"}, {ID: "feat", Name: "Feature"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	if got := Slug("  Tech Debt / Ops "); got != "tech-debt-ops" {
		t.Fatalf("unexpected slug %q", got)
	}
}

func TestWithCounts(t *testing.T) {
	t.Parallel()

	got := WithCounts([]model.Category{{ID: "bug", Name: "Bug"}}, map[string]int{"bug": 2})
	if len(got) != 2 || got[0].ID != model.GeneralCategoryID || got[0].Count != 0 || got[1].Count != 2 {
		t.Fatalf("unexpected %+v", got)
	}
}
