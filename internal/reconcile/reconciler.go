// Package reconcile keeps a derived, sorted view of one board's tasks in step
// with the store's live snapshots.
package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
)

var ErrNoBoard = errors.New("no board selected")

// Reconciler follows the task collection of the selected board.
//
// It is Subscribed while a board is selected and Unsubscribed otherwise.
// Every snapshot is re-derived from scratch and published as a new View.
// Listeners run on the store's delivery goroutine and must not call
// Select, Deselect or Close synchronously.
type Reconciler struct {
	store store.Store
	log   *logger.Logger

	mu        sync.Mutex
	gen       uint64
	seq       uint64
	board     *model.Board
	tasks     []model.Task
	unsub     store.Unsubscribe
	view      *View
	changed   chan struct{}
	listeners map[int]func(*View)
	nextID    int
	closed    bool

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates an unsubscribed reconciler
func New(s store.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:     s,
		log:       log.With(logger.F("component", "reconcile")),
		view:      Empty("", nil),
		changed:   make(chan struct{}),
		listeners: make(map[int]func(*View)),
	}
}

// Select subscribes to board's tasks, releasing any previous subscription
// first. Selecting the board already followed only refreshes its categories.
func (r *Reconciler) Select(board model.Board) error {
	if board.ID == "" {
		return ErrNoBoard
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return store.ErrClosed
	}
	if r.board != nil && r.board.ID == board.ID && r.unsub != nil {
		r.mu.Unlock()
		r.SetBoard(board)
		return nil
	}
	r.gen++
	gen := r.gen
	old := r.unsub
	b := board.Clone()
	r.board = &b
	r.tasks = nil
	r.unsub = nil
	r.mu.Unlock()

	if old != nil {
		old()
	}

	log := r.log.With(logger.F("board_id", board.ID))
	log.Debug("subscribing to tasks")

	unsub, err := r.store.Subscribe(store.TasksCollection(board.ID), nil,
		func(docs []store.Document) { r.onSnapshot(gen, docs) },
		func(err error) { r.onError(gen, err) },
	)
	if err != nil {
		log.Error("task subscription failed", logger.Err(err))
		r.onError(gen, err)
		return err
	}

	r.mu.Lock()
	if r.gen != gen {
		// Deselected or reselected while subscribing
		r.mu.Unlock()
		unsub()
		return nil
	}
	r.unsub = unsub
	r.mu.Unlock()
	return nil
}

// SetBoard replaces the followed board's document, typically after its
// category list changed, and re-derives the view from the last snapshot.
func (r *Reconciler) SetBoard(board model.Board) {
	r.mu.Lock()
	if r.board == nil || r.board.ID != board.ID {
		r.mu.Unlock()
		return
	}
	b := board.Clone()
	r.board = &b
	v := Derive(b, r.tasks)
	r.publishLocked(v)
	r.mu.Unlock()
	r.notify(v)
}

// Deselect releases the live query and publishes an empty view
func (r *Reconciler) Deselect() {
	r.mu.Lock()
	r.gen++
	unsub := r.unsub
	wasSelected := r.board != nil
	r.unsub = nil
	r.board = nil
	r.tasks = nil
	var v *View
	if wasSelected {
		v = Empty("", nil)
		r.publishLocked(v)
	}
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if v != nil {
		r.notify(v)
	}
}

// Close deselects and drops every listener. It is idempotent.
func (r *Reconciler) Close() {
	r.Deselect()
	r.mu.Lock()
	r.closed = true
	r.listeners = make(map[int]func(*View))
	r.mu.Unlock()
}

// BoardID returns the followed board, or "" when unsubscribed
func (r *Reconciler) BoardID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.board == nil {
		return ""
	}
	return r.board.ID
}

// View returns the latest published view
func (r *Reconciler) View() *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Listen registers fn for every published view and returns its remover
func (r *Reconciler) Listen(fn func(*View)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// AwaitTask blocks until a published view contains the task or ctx ends.
// Callers proceed either way; the boolean reports whether it was seen.
func (r *Reconciler) AwaitTask(ctx context.Context, id string) (ResolvedTask, bool) {
	for {
		r.mu.Lock()
		t, ok := r.view.Task(id)
		ch := r.changed
		r.mu.Unlock()
		if ok {
			return t, true
		}
		select {
		case <-ctx.Done():
			return ResolvedTask{}, false
		case <-ch:
		}
	}
}

func (r *Reconciler) onSnapshot(gen uint64, docs []store.Document) {
	tasks := decodeTasks(docs, r.log)

	r.mu.Lock()
	if r.gen != gen || r.board == nil {
		r.mu.Unlock()
		return
	}
	r.tasks = tasks
	v := Derive(*r.board, tasks)
	r.publishLocked(v)
	r.mu.Unlock()

	r.log.Debug("tasks reconciled", logger.F("board_id", v.BoardID), logger.F("tasks", len(v.Tasks)))
	r.notify(v)
}

// onError publishes an empty view carrying err. Retrying is the store's job.
func (r *Reconciler) onError(gen uint64, err error) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	boardID := ""
	if r.board != nil {
		boardID = r.board.ID
	}
	r.tasks = nil
	v := Empty(boardID, err)
	r.publishLocked(v)
	r.mu.Unlock()

	r.log.Warn("task snapshot failed", logger.F("board_id", boardID), logger.Err(err))
	r.notify(v)
}

// publishLocked stamps v and makes it current. Callers hold r.mu.
func (r *Reconciler) publishLocked(v *View) {
	r.seq++
	v.Seq = r.seq
	r.view = v
	close(r.changed)
	r.changed = make(chan struct{})
}

// notify hands v to listeners unless a newer view already went out
func (r *Reconciler) notify(v *View) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if v.Seq <= r.delivered {
		return
	}
	r.delivered = v.Seq

	r.mu.Lock()
	fns := make([]func(*View), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func decodeTasks(docs []store.Document, log *logger.Logger) []model.Task {
	tasks := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		var t model.Task
		if err := doc.Decode(&t); err != nil {
			log.Warn("skipping undecodable task", logger.F("task_id", doc.ID), logger.Err(err))
			continue
		}
		t.ID = doc.ID
		tasks = append(tasks, t)
	}
	return tasks
}
