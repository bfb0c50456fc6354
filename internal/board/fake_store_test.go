package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
	"github.com/existflow/ironboard/internal/store/memstore"
)

// recordingStore wraps memstore and counts calls so tests can assert that
// validation failures never reach the store.
type recordingStore struct {
	*memstore.Store

	mu      sync.Mutex
	calls   int
	batches [][]store.Write
	failErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memstore.New()}
}

func (r *recordingStore) record() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.failErr
}

func (r *recordingStore) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recordingStore) Create(ctx context.Context, coll string, data any) (string, error) {
	if err := r.record(); err != nil {
		return "", err
	}
	return r.Store.Create(ctx, coll, data)
}

func (r *recordingStore) Update(ctx context.Context, path string, fields store.Fields) error {
	if err := r.record(); err != nil {
		return err
	}
	return r.Store.Update(ctx, path, fields)
}

func (r *recordingStore) Delete(ctx context.Context, path string) error {
	if err := r.record(); err != nil {
		return err
	}
	return r.Store.Delete(ctx, path)
}

func (r *recordingStore) Batch(ctx context.Context, writes []store.Write) error {
	if err := r.record(); err != nil {
		return err
	}
	r.mu.Lock()
	r.batches = append(r.batches, writes)
	r.mu.Unlock()
	return r.Store.Batch(ctx, writes)
}

var errUnavailable = errors.New("store unavailable")

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *recordingStore) {
	t.Helper()
	rs := newRecordingStore()
	return NewService(rs, nil, WithClock(func() time.Time { return fixedNow })), rs
}

var owner = model.User{ID: "u1", Email: "Owner@Example.com", Name: "Olga Owner"}

func mustCreateBoard(t *testing.T, svc *Service, rs *recordingStore) model.Board {
	t.Helper()
	id, err := svc.CreateBoard(context.Background(), owner, BoardInput{Name: "Roadmap"})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	return mustGetBoard(t, rs, id)
}

func mustGetBoard(t *testing.T, rs *recordingStore, id string) model.Board {
	t.Helper()
	doc, err := rs.Get(context.Background(), store.BoardPath(id))
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	var b model.Board
	if err := doc.Decode(&b); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	b.ID = id
	return b
}

func mustGetTask(t *testing.T, rs *recordingStore, boardID, id string) model.Task {
	t.Helper()
	doc, err := rs.Get(context.Background(), store.TaskPath(boardID, id))
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	var task model.Task
	if err := doc.Decode(&task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	task.ID = id
	return task
}

func mustListTasks(t *testing.T, rs *recordingStore, boardID string) []model.Task {
	t.Helper()
	docs, err := rs.Query(store.TasksCollection(boardID), nil)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		var task model.Task
		if err := d.Decode(&task); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		task.ID = d.ID
		tasks = append(tasks, task)
	}
	return tasks
}
