package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/existflow/ironboard/internal/app"
	"github.com/existflow/ironboard/internal/config"
	"github.com/existflow/ironboard/internal/db"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/membership"
	"github.com/existflow/ironboard/internal/reconcile"
	"github.com/existflow/ironboard/internal/remote"
	"github.com/existflow/ironboard/internal/store"
)

var (
	errNoIdentity   = errors.New("no user configured: pass --user (and --email) once to save it")
	errNoBoards     = errors.New("no boards yet: create one with 'ironboard board new <name>'")
	errAmbiguous    = errors.New("ambiguous reference")
	errTaskNotFound = errors.New("task not found")

	errNothingToChange = errors.New("nothing to change: pass --title, --desc, --category or --assignee")
)

// storeCloser is a store the CLI owns and must close
type storeCloser interface {
	store.Store
	io.Closer
}

// openStore opens the remote store when a server is configured and the
// local database otherwise
func openStore() (storeCloser, error) {
	if cfg.ServerURL != "" {
		appLog.Debug("using remote store", logger.F("server", cfg.ServerURL))
		return remote.New(cfg.ServerURL, cfg.User, appLog), nil
	}
	path := cfg.StorePath
	if path == "" {
		path = db.DefaultDBPath(cfg.Dir())
	}
	database, err := db.Open(path, appLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// readyTimeout bounds the wait for the first snapshots
func readyTimeout() time.Duration {
	if cfg.AwaitTimeout > 0 {
		return 2 * cfg.AwaitTimeout
	}
	return 10 * time.Second
}

// session is an app session plus the store it runs on
type session struct {
	*app.Session
	store storeCloser
}

func (s *session) Close() {
	s.Session.Close()
	if err := s.store.Close(); err != nil {
		appLog.Warn("failed to close store", logger.Err(err))
	}
}

// openSession starts a session for the configured user and waits until the
// board list and the selected board's tasks are known
func openSession(ctx context.Context) (*session, error) {
	if cfg.User.ID == "" {
		return nil, errNoIdentity
	}
	st, err := openStore()
	if err != nil {
		return nil, err
	}

	sess := app.New(st, cfg.User, config.NewState(cfg.Dir(), appLog), appLog,
		app.WithAwaitTimeout(cfg.AwaitTimeout))
	s := &session{Session: sess, store: st}
	if err := sess.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if err := s.wait(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if boardFlag != "" {
		entry, err := resolveBoard(sess.Membership.State().Boards, boardFlag)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := sess.SelectBoard(entry.Board.ID); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.wait(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout())
	defer cancel()
	if err := s.Ready(ctx); err != nil {
		return fmt.Errorf("boards did not load: %w", err)
	}
	if err := s.Membership.State().Err; err != nil {
		return fmt.Errorf("failed to load boards: %w", err)
	}
	return nil
}

// current returns the selected board and its reconciled view
func (s *session) current() (membership.Entry, *reconcile.View, error) {
	entry, err := s.Current()
	if errors.Is(err, app.ErrNoBoardSelected) {
		return membership.Entry{}, nil, errNoBoards
	}
	if err != nil {
		return membership.Entry{}, nil, err
	}
	view := s.View()
	if view.Err != nil {
		return entry, nil, fmt.Errorf("failed to load tasks: %w", view.Err)
	}
	return entry, view, nil
}

// resolveBoard finds a board by exact id, unique id prefix or name
func resolveBoard(entries []membership.Entry, ref string) (membership.Entry, error) {
	ref = strings.TrimSpace(ref)
	var byPrefix, byName []membership.Entry
	for _, e := range entries {
		if e.Board.ID == ref {
			return e, nil
		}
		if strings.HasPrefix(e.Board.ID, ref) {
			byPrefix = append(byPrefix, e)
		}
		if strings.EqualFold(e.Board.Name, ref) {
			byName = append(byName, e)
		}
	}
	for _, matches := range [][]membership.Entry{byPrefix, byName} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return membership.Entry{}, fmt.Errorf("%w: %q matches %d boards", errAmbiguous, ref, len(matches))
		}
	}
	return membership.Entry{}, fmt.Errorf("%w: %q", membership.ErrUnknownBoard, ref)
}

// resolveTask finds a task in the view by exact id or unique id prefix
func resolveTask(view *reconcile.View, ref string) (reconcile.ResolvedTask, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return reconcile.ResolvedTask{}, fmt.Errorf("%w: empty id", errTaskNotFound)
	}
	if t, ok := view.Task(ref); ok {
		return t, nil
	}
	var matches []reconcile.ResolvedTask
	for _, t := range view.Tasks {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return reconcile.ResolvedTask{}, fmt.Errorf("%w: %q", errTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return reconcile.ResolvedTask{}, fmt.Errorf("%w: %q matches %d tasks", errAmbiguous, ref, len(matches))
	}
}
