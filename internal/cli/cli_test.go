package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/existflow/ironboard/internal/membership"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
)

func entries(boards ...model.Board) []membership.Entry {
	out := make([]membership.Entry, 0, len(boards))
	for _, b := range boards {
		out = append(out, membership.Entry{Board: b})
	}
	return out
}

func TestResolveBoard(t *testing.T) {
	t.Parallel()

	list := entries(
		model.Board{ID: "abc123", Name: "Alpha"},
		model.Board{ID: "abd456", Name: "Beta"},
		model.Board{ID: "zzz999", Name: "beta"},
	)

	tests := []struct {
		ref     string
		wantID  string
		wantErr error
	}{
		{ref: "abc123", wantID: "abc123"},
		{ref: "abd", wantID: "abd456"},
		{ref: "alpha", wantID: "abc123"},
		{ref: "ab", wantErr: errAmbiguous},
		{ref: "BETA", wantErr: errAmbiguous},
		{ref: "nope", wantErr: membership.ErrUnknownBoard},
	}
	for _, tt := range tests {
		got, err := resolveBoard(list, tt.ref)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%q: expected %v, got %v", tt.ref, tt.wantErr, err)
			}
			continue
		}
		if err != nil || got.Board.ID != tt.wantID {
			t.Errorf("%q: got %q, %v; want %q", tt.ref, got.Board.ID, err, tt.wantID)
		}
	}
}

func testView() *reconcile.View {
	b := model.Board{ID: "b1", Categories: model.DefaultCategories()}
	tasks := []model.Task{
		{ID: "t-one", Title: "one", Status: model.StageBacklog, CategoryID: "bug", Order: model.IntPtr(0)},
		{ID: "t-two", Title: "two", Status: model.StageBacklog, CategoryID: "feature", Order: model.IntPtr(1)},
		{ID: "u-three", Title: "three", Status: model.StageBacklog, CategoryID: "gone", Order: model.IntPtr(2)},
		{ID: "u-four", Title: "four", Status: model.StageReady, Order: model.IntPtr(0)},
	}
	return reconcile.Derive(b, tasks)
}

func TestResolveTask(t *testing.T) {
	t.Parallel()

	view := testView()
	if got, err := resolveTask(view, "t-two"); err != nil || got.Title != "two" {
		t.Fatalf("exact id: %+v %v", got, err)
	}
	if got, err := resolveTask(view, "u-f"); err != nil || got.Title != "four" {
		t.Fatalf("prefix: %+v %v", got, err)
	}
	if _, err := resolveTask(view, "t-"); !errors.Is(err, errAmbiguous) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
	if _, err := resolveTask(view, "x"); !errors.Is(err, errTaskNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := resolveTask(view, " "); !errors.Is(err, errTaskNotFound) {
		t.Fatalf("expected not found for blank id, got %v", err)
	}
}

func TestReorderSequence(t *testing.T) {
	t.Parallel()

	column := testView().Column(model.StageBacklog)
	seq := reorderSequence(column, []string{"u-three", "t-one", "u-three", "missing"})

	var got []string
	for _, task := range seq {
		got = append(got, task.ID)
	}
	want := []string{"u-three", "t-one", "t-two"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestListColumns(t *testing.T) {
	t.Parallel()

	view := testView()

	all := listColumns(view, "", "", false)
	if len(all) != len(model.BoardColumns) {
		t.Fatalf("expected every board column, got %d", len(all))
	}
	if withDone := listColumns(view, "", "", true); withDone[len(withDone)-1].Stage != model.StageDone {
		t.Fatalf("expected Done last")
	}

	// The task with a removed category is shown under General
	general := listColumns(view, "", model.GeneralCategoryID, false)
	if len(general) != 1 || general[0].Stage != model.StageBacklog || len(general[0].Tasks) != 1 {
		t.Fatalf("unexpected general backlog %+v", general)
	}
	if general[0].Tasks[0].ID != "u-three" || !general[0].Tasks[0].Repaired {
		t.Fatalf("expected the repaired task, got %+v", general[0].Tasks[0])
	}

	ready := listColumns(view, model.StageReady, "", false)
	if len(ready) != 1 || len(ready[0].Tasks) != 1 || ready[0].Tasks[0].Title != "four" {
		t.Fatalf("unexpected ready column %+v", ready)
	}
}

func TestCollaboratorInputs(t *testing.T) {
	t.Parallel()

	b := model.Board{
		Collaborators:       []string{"ana@example.com", "bo@example.com"},
		CollaboratorDetails: []model.Collaborator{{ID: "u2", Email: "bo@example.com", Color: "#fff"}},
	}
	inputs := collaboratorInputs(b, []string{" Cy@Example.com "}, []string{"ANA@example.com"})

	if len(inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %+v", inputs)
	}
	if inputs[0].Email != "bo@example.com" || !inputs[0].Detailed() || inputs[0].ID != "u2" {
		t.Fatalf("metadata not kept: %+v", inputs[0])
	}
	if inputs[1].Email != " Cy@Example.com " || inputs[1].Detailed() {
		t.Fatalf("unexpected added input %+v", inputs[1])
	}
}

func TestFindCategory(t *testing.T) {
	t.Parallel()

	cats := model.DefaultCategories()[1:]
	if c, ok := findCategory(cats, "bug"); !ok || c.Name != "Bug" {
		t.Fatalf("by id: %+v %v", c, ok)
	}
	if c, ok := findCategory(cats, "documentation"); !ok || c.ID != "documentation" {
		t.Fatalf("by id: %+v %v", c, ok)
	}
	if c, ok := findCategory(cats, " feature "); !ok || c.ID != "feature" {
		t.Fatalf("by name: %+v %v", c, ok)
	}
	if c, ok := findCategory(cats, "General"); !ok || c.ID != model.GeneralCategoryID {
		t.Fatalf("general is always present: %+v %v", c, ok)
	}
	if _, ok := findCategory(cats, "nope"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestPrinterPlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newPrinter(&buf)
	if p.styled {
		t.Fatalf("a buffer is not a terminal")
	}

	p.success("Created board: %s", "Alpha")
	p.printColumn(model.StageBacklog, testView().Column(model.StageBacklog))
	p.printColumn(model.StageQA, nil)

	out := buf.String()
	for _, want := range []string{
		"✓ Created board: Alpha",
		"Backlog (3)",
		"ID\tTitle\tCategory\tAssignees\tRank",
		"t-one\tone\tBug\t\t0\n",
		"General (repaired)",
		"QA (0)",
		"no tasks",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Fatalf("got %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("got %q", got)
	}
}

// run executes the root command with args against the config in dir
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	t.Setenv("IRONBOARD_HOME", t.TempDir())
	t.Setenv("IRONBOARD_SERVER_URL", "")

	out := run(t, "--user", "u1", "--email", "u1@example.com", "board", "new", "Launch")
	if !strings.Contains(out, "✓ Created board: Launch") {
		t.Fatalf("unexpected output %q", out)
	}

	out = run(t, "board", "ls")
	if !strings.Contains(out, "Launch") || !strings.Contains(out, "owner") {
		t.Fatalf("board missing from list: %q", out)
	}

	out = run(t, "task", "add", "Fix", "login", "-c", "Bug")
	if !strings.Contains(out, "Added task") || !strings.Contains(out, "Backlog, Bug") {
		t.Fatalf("unexpected add output %q", out)
	}

	out = run(t, "task", "ls")
	if !strings.Contains(out, "Fix login") || !strings.Contains(out, "Backlog (1)") {
		t.Fatalf("task missing from list: %q", out)
	}

	out = run(t, "category", "ls")
	if !strings.Contains(out, "bug\tBug\t#ef4444\t1") {
		t.Fatalf("unexpected category counts %q", out)
	}
}
