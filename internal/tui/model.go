package tui

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/existflow/ironboard/internal/app"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/membership"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAddTask
	ModeBoards
	ModeHelp
)

// watcher turns session callbacks into a wake-up channel for the program
type watcher struct {
	changes chan struct{}
	once    sync.Once
	stops   []func()
}

func (w *watcher) wake() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *watcher) close() {
	w.once.Do(func() {
		for _, stop := range w.stops {
			stop()
		}
	})
}

// Model is the live board view
type Model struct {
	sess  *app.Session
	log   *logger.Logger
	ctx   context.Context
	watch *watcher

	state   membership.State
	view    *reconcile.View
	loading bool

	// UI state
	width       int
	height      int
	mode        Mode
	col         int
	cursors     []int
	catFilter   string
	boardCursor int

	input   textinput.Model
	spinner spinner.Model

	message string
}

// NewModel creates a model following sess. Call Close when the program ends.
func NewModel(ctx context.Context, sess *app.Session, log *logger.Logger) Model {
	log = log.With(logger.F("component", "tui"))
	log.Info("Initializing TUI model")

	ti := textinput.New()
	ti.Placeholder = "Task title..."
	ti.CharLimit = 256
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	w := &watcher{changes: make(chan struct{}, 1)}
	w.stops = append(w.stops,
		sess.Membership.Listen(func(membership.State) { w.wake() }),
		sess.Tasks.Listen(func(*reconcile.View) { w.wake() }),
	)

	m := Model{
		sess:    sess,
		log:     log,
		ctx:     ctx,
		watch:   w,
		mode:    ModeNormal,
		cursors: make([]int, len(model.Stages)),
		input:   ti,
		spinner: sp,
	}
	m.refresh()
	log.Debug("TUI model initialized",
		logger.F("boards", len(m.state.Boards)),
		logger.F("tasks", len(m.view.Tasks)))
	return m
}

// Close stops following the session
func (m Model) Close() {
	m.watch.close()
}

// refresh pulls the latest board list and view from the session
func (m *Model) refresh() {
	m.state = m.sess.Membership.State()
	m.view = m.sess.View()
	m.loading = m.state.SelectedID != "" && m.view.BoardID != m.state.SelectedID

	if m.catFilter != "" {
		found := false
		for _, c := range m.view.Categories {
			if c.ID == m.catFilter {
				found = true
				break
			}
		}
		if !found {
			m.catFilter = ""
		}
	}
	for i := range m.cursors {
		m.cursors[i] = clamp(m.cursors[i], len(m.columnTasks(i)))
	}
	m.boardCursor = clamp(m.boardCursor, len(m.state.Boards))
}

func (m Model) currentBoard() (membership.Entry, bool) {
	return m.state.Selected()
}

// columnTasks returns the tasks shown in column i; the Backlog honors the
// category filter
func (m Model) columnTasks(i int) []reconcile.ResolvedTask {
	if i < 0 || i >= len(model.Stages) {
		return nil
	}
	stage := model.Stages[i]
	if stage == model.StageBacklog {
		return m.view.Backlog(m.catFilter)
	}
	return m.view.Column(stage)
}

func (m Model) selectedTask() (reconcile.ResolvedTask, bool) {
	tasks := m.columnTasks(m.col)
	c := m.cursors[m.col]
	if c < 0 || c >= len(tasks) {
		return reconcile.ResolvedTask{}, false
	}
	return tasks[c], true
}

// filterName is the display name of the active category filter
func (m Model) filterName() string {
	for _, c := range m.view.Categories {
		if c.ID == m.catFilter {
			return c.Name
		}
	}
	return "All"
}
