package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/existflow/ironboard/internal/store"
)

func mustCreate(t *testing.T, s *Store, coll string, data any) string {
	t.Helper()
	id, err := s.Create(context.Background(), coll, data)
	if err != nil {
		t.Fatalf("create in %s: %v", coll, err)
	}
	return id
}

func TestCreateAndSubscribeFilters(t *testing.T) {
	t.Parallel()

	s := New()
	mustCreate(t, s, "boards", map[string]any{"owner": "u1", "collaborators": []string{}})
	shared := mustCreate(t, s, "boards", map[string]any{"owner": "u2", "collaborators": []string{"me@x.io"}})

	var got []store.Document
	unsub, err := s.Subscribe("boards", []store.Filter{store.ArrayContains("collaborators", "me@x.io")},
		func(docs []store.Document) { got = docs }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	if len(got) != 1 || got[0].ID != shared {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	mustCreate(t, s, "boards", map[string]any{"owner": "u3", "collaborators": []string{"me@x.io"}})
	if len(got) != 2 {
		t.Fatalf("expected push after create, got %d docs", len(got))
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	s := New()
	id := mustCreate(t, s, "boards/b/tasks", map[string]any{"title": "a"})
	var got []store.Document
	unsub, _ := s.Subscribe("boards/b/tasks", nil, func(docs []store.Document) { got = docs }, nil)
	defer unsub()

	got[0].Data["title"] = "mutated"
	doc, err := s.Get(context.Background(), store.TaskPath("b", id))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["title"] != "a" {
		t.Fatalf("snapshot shares memory with the store")
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	t.Parallel()

	s := New()
	err := s.Update(context.Background(), "boards/nope", store.Fields{"name": "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchIsAllOrNothing(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "boards/b/tasks", map[string]any{"order": 0})

	err := s.Batch(ctx, []store.Write{
		{Path: store.TaskPath("b", a), Fields: store.Fields{"order": 5}},
		{Path: store.TaskPath("b", "missing"), Fields: store.Fields{"order": 6}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	doc, _ := s.Get(ctx, store.TaskPath("b", a))
	if doc.Data["order"] != float64(0) {
		t.Fatalf("partial batch applied: %v", doc.Data)
	}
}

func TestBatchPublishesOnce(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := mustCreate(t, s, "boards/b/tasks", map[string]any{"order": 0})
	b := mustCreate(t, s, "boards/b/tasks", map[string]any{"order": 1})

	deliveries := 0
	unsub, _ := s.Subscribe("boards/b/tasks", nil, func([]store.Document) { deliveries++ }, nil)
	defer unsub()

	err := s.Batch(ctx, []store.Write{
		{Path: store.TaskPath("b", a), Fields: store.Fields{"order": 1}},
		{Path: store.TaskPath("b", b), Fields: store.Fields{"order": 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if deliveries != 2 {
		t.Fatalf("expected initial plus one batch delivery, got %d", deliveries)
	}
}

func TestDeleteRemovesSubcollections(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	board := mustCreate(t, s, "boards", map[string]any{"name": "b"})
	mustCreate(t, s, store.TasksCollection(board), map[string]any{"title": "t"})

	var tasks []store.Document
	unsub, _ := s.Subscribe(store.TasksCollection(board), nil, func(docs []store.Document) { tasks = docs }, nil)
	defer unsub()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task")
	}

	if err := s.Delete(ctx, store.BoardPath(board)); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty snapshot after board delete, got %d", len(tasks))
	}
}

func TestSubscriptionErrorsAndClose(t *testing.T) {
	t.Parallel()

	s := New()
	boom := errors.New("permission denied")
	s.FailSubscriptions(boom)

	var gotErr error
	unsub, err := s.Subscribe("boards", nil, func([]store.Document) {}, func(err error) { gotErr = err })
	if err != nil {
		t.Fatal(err)
	}
	unsub()
	if !errors.Is(gotErr, boom) {
		t.Fatalf("expected load error, got %v", gotErr)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(context.Background(), "boards", map[string]any{}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
