package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/ironboard/internal/model"
)

// Color palette
var (
	// Stage colors
	StageBacklog    = lipgloss.Color("#6C757D")
	StageReady      = lipgloss.Color("#4ECDC4")
	StageInProgress = lipgloss.Color("#FFB347")
	StageReview     = lipgloss.Color("#FFE66D")
	StageQA         = lipgloss.Color("#C792EA")
	StageDone       = lipgloss.Color("#95E1A3")

	Warning = lipgloss.Color("#FF6B6B")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Board columns
	ColumnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Border).
			Padding(0, 1)

	ColumnFocusedStyle = ColumnStyle.
				BorderForeground(Primary)

	// Task item
	TaskItemStyle = lipgloss.NewStyle()

	TaskItemSelectedStyle = lipgloss.NewStyle().
				Background(Surface).
				Bold(true)

	TaskDoneStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Strikethrough(true)

	RepairedStyle = lipgloss.NewStyle().Foreground(Warning)

	// Category filter bar
	CategoryStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(TextMuted)

	CategoryActiveStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// StageStyle returns the heading style for a stage
func StageStyle(stage model.Stage) lipgloss.Style {
	color := StageBacklog
	switch stage {
	case model.StageReady:
		color = StageReady
	case model.StageInProgress:
		color = StageInProgress
	case model.StageReview:
		color = StageReview
	case model.StageQA:
		color = StageQA
	case model.StageDone:
		color = StageDone
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// CategoryBadge renders a category name in its own color
func CategoryBadge(c model.Category) string {
	color := c.Color
	if color == "" {
		color = model.DefaultCategoryColor
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●") + " " + c.Name
}
