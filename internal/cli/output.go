package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/reconcile"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
)

// printer writes command output, styled only when it goes to a terminal
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) success(format string, args ...any) {
	p.println(p.render(okStyle, "✓ ") + fmt.Sprintf(format, args...))
}

func (p *printer) warn(format string, args ...any) {
	p.println(p.render(warnStyle, "! ") + fmt.Sprintf(format, args...))
}

func (p *printer) heading(s string) {
	p.println(p.render(headingStyle, s))
}

// table prints rows with a header: a bordered table on terminals, tab
// separated columns otherwise
func (p *printer) table(headers []string, rows [][]string) {
	if !p.styled {
		p.println(strings.Join(headers, "\t"))
		for _, r := range rows {
			p.println(strings.Join(r, "\t"))
		}
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headingStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	p.println(t.Render())
}

// shortID trims an id for display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func taskRow(t reconcile.ResolvedTask) []string {
	cat := t.Category.Name
	if t.Repaired {
		cat += " (repaired)"
	}
	rank := ""
	if t.Order != nil {
		rank = fmt.Sprint(*t.Order)
	}
	if t.Status == model.StageBacklog && t.CategoryOrder != nil {
		rank += fmt.Sprintf("/%d", *t.CategoryOrder)
	}
	return []string{shortID(t.ID), truncate(t.Title, 40), cat, strings.Join(t.Assignees, ","), rank}
}

var taskHeaders = []string{"ID", "Title", "Category", "Assignees", "Rank"}

// printColumn prints one stage's tasks in display order
func (p *printer) printColumn(stage model.Stage, tasks []reconcile.ResolvedTask) {
	p.heading(fmt.Sprintf("\n%s (%d)", stage.Name(), len(tasks)))
	if len(tasks) == 0 {
		p.println(p.render(mutedStyle, "  no tasks"))
		return
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, taskRow(t))
	}
	p.table(taskHeaders, rows)
}
