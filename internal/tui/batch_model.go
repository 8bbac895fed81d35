// Package tui renders live batch progress in the terminal. One row per
// item shows the file name, a status glyph, and a progress bar fed from
// store snapshots polled on a timer; the model never mutates the store.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stripbg/stripbg/internal/batch"
)

// pollInterval is how often the view re-reads the store.
const pollInterval = 100 * time.Millisecond

// Default dimensions before the first WindowSizeMsg arrives.
const (
	defaultWidth = 80
	barWidth     = 30
	nameWidth    = 28
)

// Row styles.
var (
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
)

// tickMsg drives the store poll.
type tickMsg time.Time

// DoneMsg tells the view that processing finished; the program renders a
// final frame and quits. Sent from outside via Program.Send.
type DoneMsg struct{}

// BatchModel is the Bubble Tea model for the live batch view.
type BatchModel struct {
	store *batch.Store
	bar   progress.Model
	rows  []batch.Snapshot
	width int
	done  bool
}

// NewBatchModel creates a model reading from store.
func NewBatchModel(store *batch.Store) *BatchModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = barWidth
	return &BatchModel{
		store: store,
		bar:   bar,
		rows:  store.List(),
		width: defaultWidth,
	}
}

// Init implements tea.Model.
func (m *BatchModel) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m *BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.rows = m.store.List()
		if m.done {
			return m, nil
		}
		return m, tick()
	case DoneMsg:
		m.done = true
		m.rows = m.store.List()
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *BatchModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Removing backgrounds"))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		b.WriteString(m.renderRow(row))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.summary())
		b.WriteByte('\n')
	} else {
		b.WriteString(pendingStyle.Render("press q to stop watching"))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderRow formats one item line.
func (m *BatchModel) renderRow(row batch.Snapshot) string {
	name := row.Filename
	if len(name) > nameWidth {
		name = name[:nameWidth-1] + "…"
	}

	switch row.Status {
	case batch.StatusPending:
		return fmt.Sprintf("%-*s %s", nameWidth, name, pendingStyle.Render("· waiting"))
	case batch.StatusProcessing:
		return fmt.Sprintf("%-*s %s %3d%%", nameWidth, name,
			m.bar.ViewAs(float64(row.Progress)/100), row.Progress)
	case batch.StatusCompleted:
		return fmt.Sprintf("%-*s %s", nameWidth, name, completedStyle.Render("✓ done"))
	case batch.StatusError:
		return fmt.Sprintf("%-*s %s", nameWidth, name, errorStyle.Render("✗ failed"))
	default:
		return name
	}
}

// summary renders the final counts line.
func (m *BatchModel) summary() string {
	var completed, failed int
	for _, row := range m.rows {
		switch row.Status {
		case batch.StatusCompleted:
			completed++
		case batch.StatusError:
			failed++
		}
	}
	text := fmt.Sprintf("%d completed, %d failed", completed, failed)
	if failed > 0 {
		return errorStyle.Render(text)
	}
	return completedStyle.Render(text)
}

// tick schedules the next store poll.
func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
