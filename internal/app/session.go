// Package app wires the board core into one session per signed-in user.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/existflow/ironboard/internal/board"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/membership"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
	"github.com/existflow/ironboard/internal/store"
)

var ErrNoBoardSelected = errors.New("no board selected")

// DefaultAwaitTimeout bounds how long AddTask waits for its task to show up
const DefaultAwaitTimeout = 5 * time.Second

// Session owns everything that lives between sign-in and sign-out: the
// membership resolver, the task reconciler following the selected board and
// the write service.
type Session struct {
	User       model.User
	Store      store.Store
	Boards     *board.Service
	Membership *membership.Resolver
	Tasks      *reconcile.Reconciler

	log          *logger.Logger
	awaitTimeout time.Duration

	mu      sync.Mutex
	changed chan struct{}
	stops   []func()
	started bool
}

// Option configures a Session
type Option func(*Session)

// WithAwaitTimeout sets how long AddTask waits for read-your-writes
func WithAwaitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.awaitTimeout = d
		}
	}
}

// WithService replaces the default board service
func WithService(svc *board.Service) Option {
	return func(s *Session) {
		s.Boards = svc
	}
}

// New creates a session for user. memory may be nil.
func New(st store.Store, user model.User, memory membership.Memory, log *logger.Logger, opts ...Option) *Session {
	log = log.With(logger.F("user_id", user.ID))
	s := &Session{
		User:         user,
		Store:        st,
		Boards:       board.NewService(st, log),
		Membership:   membership.NewResolver(st, user, memory, log),
		Tasks:        reconcile.New(st, log),
		log:          log,
		awaitTimeout: DefaultAwaitTimeout,
		changed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the live subscriptions and follows the selected board
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stops = append(s.stops,
		s.Membership.Listen(s.follow),
		s.Tasks.Listen(func(*reconcile.View) { s.signal() }),
	)
	s.mu.Unlock()

	if err := s.Membership.Start(); err != nil {
		s.Close()
		return err
	}
	s.log.Info("session started")
	return nil
}

// Close tears the session down; it is safe to call more than once
func (s *Session) Close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	wasStarted := s.started
	s.started = false
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	s.Membership.Stop()
	s.Tasks.Close()
	if wasStarted {
		s.log.Info("session closed")
	}
}

// follow keeps the reconciler on the resolver's selection
func (s *Session) follow(st membership.State) {
	entry, ok := st.Selected()
	switch {
	case !ok:
		if s.Tasks.BoardID() != "" {
			s.Tasks.Deselect()
		}
	default:
		if err := s.Tasks.Select(entry.Board); err != nil {
			s.log.Warn("follow board failed", logger.F("board_id", entry.Board.ID), logger.Err(err))
		}
	}
	s.signal()
}

func (s *Session) signal() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Ready blocks until the board list is known and, when a board is selected,
// its first task snapshot has been reconciled.
func (s *Session) Ready(ctx context.Context) error {
	for {
		s.mu.Lock()
		ch := s.changed
		s.mu.Unlock()

		if s.isReady() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (s *Session) isReady() bool {
	if !s.Membership.Ready() {
		return false
	}
	st := s.Membership.State()
	if st.SelectedID == "" {
		return true
	}
	// Views only carry a board id once a snapshot or error for it arrived
	return s.Tasks.View().BoardID == st.SelectedID
}

// Current returns the selected board entry
func (s *Session) Current() (membership.Entry, error) {
	entry, ok := s.Membership.State().Selected()
	if !ok {
		return membership.Entry{}, ErrNoBoardSelected
	}
	return entry, nil
}

// View returns the latest reconciled view of the selected board
func (s *Session) View() *reconcile.View {
	return s.Tasks.View()
}

// SelectBoard switches to id and remembers it as the last used board
func (s *Session) SelectBoard(id string) error {
	return s.Membership.Select(id)
}

// Snapshot returns the selected board's tasks as plain tasks, in display order
func (s *Session) Snapshot() []model.Task {
	v := s.Tasks.View()
	out := make([]model.Task, 0, len(v.Tasks))
	for _, t := range v.Tasks {
		out = append(out, t.Task)
	}
	return out
}

// AddTask creates a task on the selected board and waits, up to the await
// timeout, for it to appear in a snapshot. A timeout is not an error: the
// id is returned and found reports false.
func (s *Session) AddTask(ctx context.Context, in board.TaskInput) (task reconcile.ResolvedTask, found bool, err error) {
	entry, err := s.Current()
	if err != nil {
		return reconcile.ResolvedTask{}, false, err
	}
	id, err := s.Boards.CreateTask(ctx, entry.Board, s.Snapshot(), s.User, in)
	if err != nil {
		return reconcile.ResolvedTask{}, false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.awaitTimeout)
	defer cancel()
	task, found = s.Tasks.AwaitTask(waitCtx, id)
	if !found {
		s.log.Warn("created task not seen before timeout", logger.F("task_id", id))
		task = reconcile.ResolvedTask{Task: model.Task{ID: id, Title: in.Title}}
	}
	return task, found, nil
}
