package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/ironboard/internal/board"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
)

const writeTimeout = 10 * time.Second

// changeMsg is sent when the board list or the selected board's tasks change
type changeMsg struct{}

// actionMsg reports the outcome of a write started from the UI
type actionMsg struct {
	text string
	err  error
}

// Init starts the spinner and listens for session changes
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForChange())
}

// waitForChange blocks until the session reports a change
func (m Model) waitForChange() tea.Cmd {
	changes := m.watch.changes
	return func() tea.Msg {
		<-changes
		return changeMsg{}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changeMsg:
		m.refresh()
		return m, m.waitForChange()

	case actionMsg:
		if msg.err != nil {
			m.log.Warn("action failed", logger.Err(msg.err))
			m.message = "Error: " + msg.err.Error()
		} else {
			m.message = msg.text
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAddTask:
			return m.updateInput(msg)
		case ModeBoards:
			return m.updateBoards(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}
	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Left):
		m.col = clamp(m.col-1, len(model.Stages))

	case key.Matches(msg, keys.Right):
		m.col = clamp(m.col+1, len(model.Stages))

	case key.Matches(msg, keys.Up):
		m.cursors[m.col] = clamp(m.cursors[m.col]-1, len(m.columnTasks(m.col)))

	case key.Matches(msg, keys.Down):
		m.cursors[m.col] = clamp(m.cursors[m.col]+1, len(m.columnTasks(m.col)))

	case key.Matches(msg, keys.Category):
		m.cycleCategory()

	case key.Matches(msg, keys.Boards):
		if len(m.state.Boards) == 0 {
			m.message = "No boards yet"
			return m, nil
		}
		m.boardCursor = 0
		for i, e := range m.state.Boards {
			if e.Board.ID == m.state.SelectedID {
				m.boardCursor = i
			}
		}
		m.mode = ModeBoards

	case key.Matches(msg, keys.Add):
		if _, ok := m.currentBoard(); !ok {
			m.message = "Select a board first"
			return m, nil
		}
		m.mode = ModeAddTask
		m.input.SetValue("")
		m.input.Focus()
		return m, nil

	case key.Matches(msg, keys.Advance):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		next, ok := t.Status.Next()
		if !ok {
			m.message = "Already done"
			return m, nil
		}
		return m, m.moveCmd(t, next)

	case key.Matches(msg, keys.Done):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if t.IsDone() {
			m.message = "Already done"
			return m, nil
		}
		return m, m.moveCmd(t, model.StageDone)

	case key.Matches(msg, keys.Delete):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m, m.deleteCmd(t)

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	}
	return m, nil
}

// cycleCategory steps the Backlog filter through All and each category
func (m *Model) cycleCategory() {
	ids := make([]string, 0, len(m.view.Categories)+1)
	ids = append(ids, "")
	for _, c := range m.view.Categories {
		ids = append(ids, c.ID)
	}
	next := 0
	for i, id := range ids {
		if id == m.catFilter {
			next = (i + 1) % len(ids)
			break
		}
	}
	m.catFilter = ids[next]
	m.cursors[0] = 0
	m.message = "Category: " + m.filterName()
}

// updateBoards handles the board picker
func (m Model) updateBoards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape), key.Matches(msg, keys.Boards):
		m.mode = ModeNormal

	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		m.boardCursor = clamp(m.boardCursor-1, len(m.state.Boards))

	case key.Matches(msg, keys.Down):
		m.boardCursor = clamp(m.boardCursor+1, len(m.state.Boards))

	case key.Matches(msg, keys.Enter):
		m.mode = ModeNormal
		if m.boardCursor >= len(m.state.Boards) {
			return m, nil
		}
		entry := m.state.Boards[m.boardCursor]
		if entry.Board.ID == m.state.SelectedID {
			return m, nil
		}
		if err := m.sess.SelectBoard(entry.Board.ID); err != nil {
			m.message = "Error: " + err.Error()
			return m, nil
		}
		m.catFilter = ""
		m.col = 0
		for i := range m.cursors {
			m.cursors[i] = 0
		}
		m.message = "Switched to " + entry.Board.Name
		m.refresh()
	}
	return m, nil
}

// updateInput handles the add task modal
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		title := strings.TrimSpace(m.input.Value())
		m.mode = ModeNormal
		m.input.Blur()
		if title == "" {
			return m, nil
		}
		return m, m.addCmd(title)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) addCmd(title string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	in := board.TaskInput{Title: title}
	if m.catFilter != "" {
		in.Category = model.ByID(m.catFilter)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		t, found, err := sess.AddTask(ctx, in)
		if err != nil {
			return actionMsg{err: err}
		}
		if !found {
			return actionMsg{text: "Added " + title + " (not on the board yet)"}
		}
		return actionMsg{text: fmt.Sprintf("Added %s to %s", t.Title, t.Category.Name)}
	}
}

func (m Model) moveCmd(t reconcile.ResolvedTask, stage model.Stage) tea.Cmd {
	sess, ctx, boardID := m.sess, m.ctx, m.view.BoardID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := sess.Boards.MoveTaskToEnd(ctx, boardID, t.Task, stage, sess.Snapshot()); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("Moved %s to %s", t.Title, stage.Name())}
	}
}

func (m Model) deleteCmd(t reconcile.ResolvedTask) tea.Cmd {
	sess, ctx, boardID := m.sess, m.ctx, m.view.BoardID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := sess.Boards.DeleteTask(ctx, boardID, t.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "Deleted " + t.Title}
	}
}
