package board

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
)

func TestValidationNeverReachesStore(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	ctx := context.Background()
	bad := model.Stage("someday")
	noBoard := model.Board{}
	task := model.Task{ID: "t1"}

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"board name", func() error { _, err := svc.CreateBoard(ctx, owner, BoardInput{Name: "  "}); return err }, ErrBoardNameRequired},
		{"board user", func() error { _, err := svc.CreateBoard(ctx, model.User{}, BoardInput{Name: "x"}); return err }, ErrUserIDRequired},
		{"update board id", func() error { return svc.UpdateBoard(ctx, owner, noBoard, BoardUpdate{}) }, ErrBoardIDRequired},
		{"update not owner", func() error {
			return svc.UpdateBoard(ctx, owner, model.Board{ID: "b", Owner: "u2"}, BoardUpdate{})
		}, ErrNotOwner},
		{"delete not owner", func() error { return svc.DeleteBoard(ctx, owner, model.Board{ID: "b", Owner: "u2"}) }, ErrNotOwner},
		{"delete no user", func() error { return svc.DeleteBoard(ctx, model.User{}, model.Board{ID: "b"}) }, ErrUserIDRequired},
		{"task board id", func() error { _, err := svc.CreateTask(ctx, noBoard, nil, owner, TaskInput{}); return err }, ErrBoardIDRequired},
		{"task stage", func() error {
			_, err := svc.CreateTask(ctx, model.Board{ID: "b"}, nil, owner, TaskInput{Status: bad})
			return err
		}, ErrInvalidStage},
		{"update task id", func() error { return svc.UpdateTask(ctx, "b", model.Task{}, TaskUpdate{}) }, ErrTaskIDRequired},
		{"update task board", func() error { return svc.UpdateTask(ctx, "", task, TaskUpdate{}) }, ErrBoardIDRequired},
		{"update task stage", func() error { return svc.UpdateTask(ctx, "b", task, TaskUpdate{Status: &bad}) }, ErrInvalidStage},
		{"delete task id", func() error { return svc.DeleteTask(ctx, "b", "") }, ErrTaskIDRequired},
		{"move task id", func() error { return svc.MoveTask(ctx, "b", model.Task{}, model.StageReady, 0) }, ErrTaskIDRequired},
		{"move stage", func() error { return svc.MoveTask(ctx, "b", task, bad, 0) }, ErrInvalidStage},
		{"reorder board", func() error { return svc.ReorderColumn(ctx, noBoard, model.StageReady, nil) }, ErrBoardIDRequired},
		{"reorder stage", func() error { return svc.ReorderColumn(ctx, model.Board{ID: "b"}, bad, nil) }, ErrInvalidStage},
		{"category name", func() error { _, err := svc.AddCategory(ctx, model.Board{ID: "b"}, " ", ""); return err }, ErrCategoryNameRequired},
		{"remove general", func() error { return svc.RemoveCategory(ctx, model.Board{ID: "b"}, "general") }, ErrGeneralCategory},
		{"backfill board", func() error { _, err := svc.BackfillCategories(ctx, noBoard, nil); return err }, ErrBoardIDRequired},
	}
	for _, tc := range cases {
		if err := tc.call(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if n := rs.Calls(); n != 0 {
		t.Fatalf("validation failures reached the store %d times", n)
	}
}

func TestCreateBoardDefaults(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	id, err := svc.CreateBoard(context.Background(), owner, BoardInput{
		Name: " Roadmap ",
		Collaborators: []model.CollaboratorInput{
			model.EmailInput(" Ana@Example.com "),
			model.DetailedInput(model.Collaborator{ID: "u9", Email: "ana@example.com", Color: "#fff"}),
			model.DetailedInput(model.Collaborator{ID: "u8", Email: "Bo@Example.com", Color: "#000"}),
			model.EmailInput("not-an-email"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	b := mustGetBoard(t, rs, id)

	if b.Name != "Roadmap" || b.Owner != "u1" || b.OwnerEmail != "owner@example.com" {
		t.Fatalf("unexpected board %+v", b)
	}
	if !reflect.DeepEqual(b.Collaborators, []string{"ana@example.com", "bo@example.com"}) {
		t.Fatalf("unexpected collaborators %v", b.Collaborators)
	}
	if len(b.CollaboratorDetails) != 2 || b.CollaboratorDetails[1].Email != "bo@example.com" {
		t.Fatalf("unexpected details %+v", b.CollaboratorDetails)
	}
	if !reflect.DeepEqual(b.Categories, model.DefaultCategories()) {
		t.Fatalf("expected default categories, got %+v", b.Categories)
	}
	if !b.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected createdAt %v", b.CreatedAt)
	}
}

func TestUpdateBoardSanitizes(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	b := mustCreateBoard(t, svc, rs)
	collabs := []model.CollaboratorInput{model.EmailInput("X@Y.io"), model.EmailInput("x@y.io")}
	err := svc.UpdateBoard(context.Background(), owner, b, BoardUpdate{
		Collaborators: &collabs,
		Categories: []model.Category{
			{ID: "general", Name: "General"},
			{ID: "", Name: "Nameless"},
			{ID: "general", Name: "Dup"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := mustGetBoard(t, rs, b.ID)
	if !reflect.DeepEqual(got.Collaborators, []string{"x@y.io"}) || len(got.Categories) != 1 {
		t.Fatalf("unexpected board %+v", got)
	}
	if got.Name != "Roadmap" {
		t.Fatalf("name changed without being asked")
	}
}

func TestCategoryLifecycle(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	ctx := context.Background()
	b := mustCreateBoard(t, svc, rs)

	c, err := svc.AddCategory(ctx, b, "Tech Debt", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "tech-debt" || c.Color != model.DefaultCategoryColor {
		t.Fatalf("unexpected category %+v", c)
	}
	b = mustGetBoard(t, rs, b.ID)
	if _, err := svc.AddCategory(ctx, b, " tech debt ", ""); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	second, err := svc.AddCategory(ctx, b, "Tech-Debt!", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != "tech-debt-2" {
		t.Fatalf("expected unique id, got %q", second.ID)
	}

	b = mustGetBoard(t, rs, b.ID)
	if err := svc.RemoveCategory(ctx, b, "TECH-DEBT"); err != nil {
		t.Fatal(err)
	}
	b = mustGetBoard(t, rs, b.ID)
	for _, cat := range b.Categories {
		if cat.ID == "tech-debt" {
			t.Fatalf("category not removed")
		}
	}
	if err := svc.RemoveCategory(ctx, b, "nope"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	rs.failErr = errUnavailable
	if _, err := svc.CreateBoard(context.Background(), owner, BoardInput{Name: "x"}); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	err := svc.DeleteTask(context.Background(), "b", "t")
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestDeleteBoard(t *testing.T) {
	t.Parallel()

	svc, rs := newTestService(t)
	b := mustCreateBoard(t, svc, rs)
	if err := svc.DeleteBoard(context.Background(), owner, b); err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Get(context.Background(), store.BoardPath(b.ID)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("board still present: %v", err)
	}
}
