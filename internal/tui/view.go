package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/ironboard/internal/model"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var mainContent string
	switch {
	case m.mode == ModeHelp:
		mainContent = m.renderHelp()
	case len(m.state.Boards) == 0:
		mainContent = lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center,
			HelpStyle.Render("No boards yet. Create one with: ironboard board new <name>"))
	default:
		mainContent = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			m.renderCategories(),
			m.renderColumns(),
		)
	}

	if m.mode == ModeAddTask || m.mode == ModeBoards {
		var modal string
		if m.mode == ModeAddTask {
			modal = m.renderAddModal()
		} else {
			modal = m.renderBoardModal()
		}
		mainContent = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			modal,
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, m.renderStatusBar())
}

func (m Model) renderHeader() string {
	entry, ok := m.currentBoard()
	if !ok {
		return HeaderStyle.Render("ironboard")
	}
	s := HeaderStyle.Render(entry.Board.Name)
	role := "shared with you"
	if entry.IsOwner {
		role = fmt.Sprintf("owner · %d collaborator(s)", len(entry.Board.Collaborators))
	}
	s += HelpStyle.Render(role)
	if m.loading {
		s += " " + m.spinner.View()
	}
	return s
}

// renderCategories draws the Backlog filter bar with badge counts
func (m Model) renderCategories() string {
	counts := m.view.CategoryCounts()
	total := 0
	parts := make([]string, 0, len(counts)+1)
	for _, c := range counts {
		total += c.Count
	}
	style := CategoryStyle
	if m.catFilter == "" {
		style = CategoryActiveStyle
	}
	parts = append(parts, style.Render(fmt.Sprintf("All (%d)", total)))
	for _, c := range counts {
		style := CategoryStyle
		if c.ID == m.catFilter {
			style = CategoryActiveStyle
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s (%d)", CategoryBadge(c.Category), c.Count)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderColumns() string {
	n := len(model.Stages)
	width := m.width/n - 2
	if width < 14 {
		width = 14
	}
	rows := m.height - 8
	if rows < 3 {
		rows = 3
	}

	cols := make([]string, 0, n)
	for i, stage := range model.Stages {
		tasks := m.columnTasks(i)
		title := fmt.Sprintf("%s (%d)", stage.Name(), len(tasks))
		if stage == model.StageBacklog && m.catFilter != "" {
			title = fmt.Sprintf("%s · %s (%d)", stage.Name(), m.filterName(), len(tasks))
		}
		lines := []string{StageStyle(stage).Render(truncate(title, width))}

		// Keep the cursor in view
		start := 0
		if c := m.cursors[i]; c >= rows {
			start = c - rows + 1
		}
		for j := start; j < len(tasks) && j < start+rows; j++ {
			t := tasks[j]
			label := truncate(t.Title, width-2)
			if t.Repaired {
				label = RepairedStyle.Render("!") + truncate(t.Title, width-3)
			}
			style := TaskItemStyle
			switch {
			case i == m.col && j == m.cursors[i]:
				style = TaskItemSelectedStyle
			case t.IsDone():
				style = TaskDoneStyle
			}
			lines = append(lines, style.Render(label))
		}
		if len(tasks) == 0 {
			lines = append(lines, HelpStyle.Render("empty"))
		}

		colStyle := ColumnStyle
		if i == m.col {
			colStyle = ColumnFocusedStyle
		}
		cols = append(cols, colStyle.Width(width).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderAddModal() string {
	title := "Add task to Backlog"
	if m.catFilter != "" {
		title += " · " + m.filterName()
	}
	return ModalStyle.Render(
		HeaderStyle.Render(title) + "\n\n" +
			m.input.View() + "\n\n" +
			HelpStyle.Render("enter: save • esc: cancel"),
	)
}

func (m Model) renderBoardModal() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Switch board") + "\n\n")
	for i, e := range m.state.Boards {
		line := e.Board.Name
		if !e.IsOwner {
			line += HelpStyle.Render(" (shared)")
		}
		if e.Board.ID == m.state.SelectedID {
			line += " ✓"
		}
		if i == m.boardCursor {
			line = TaskItemSelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + HelpStyle.Render("enter: select • esc: cancel"))
	return ModalStyle.Render(b.String())
}

func (m Model) renderHelp() string {
	bindings := []struct {
		k    string
		desc string
	}{
		{"←/h →/l", "move between columns"},
		{"↑/k ↓/j", "move between tasks"},
		{"tab / c", "cycle the backlog category"},
		{"n / space", "move task to the next stage"},
		{"x", "mark task done"},
		{"d", "delete task"},
		{"a", "add a backlog task"},
		{"b", "switch board"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Keys") + "\n\n")
	for _, kb := range bindings {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", kb.k, HelpStyle.Render(kb.desc)))
	}
	b.WriteString("\n" + HelpStyle.Render("press any key to close"))
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, b.String())
}

func (m Model) renderStatusBar() string {
	left := m.message
	if m.view != nil && m.view.Err != nil {
		left = "Error: " + m.view.Err.Error()
	}
	if n := len(m.view.Repairs()); n > 0 && left == "" {
		left = fmt.Sprintf("%d task(s) with a missing category, run ironboard backfill", n)
	}
	right := "? help • q quit"
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return StatusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
