// Package tui provides an interactive task board for runs in a terminal.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/ui/output"
	"go.trai.ch/mono/internal/ui/style"
)

const defaultTickInterval = 100 * time.Millisecond

// logTailLines bounds how much recent output each row keeps for display.
const logTailLines = 5

// TaskStatus represents the current state of a task row.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting to start.
	StatusPending TaskStatus = "pending"
	// StatusRunning indicates the task is currently executing.
	StatusRunning TaskStatus = "running"
	// StatusDone indicates the task reached a terminal state.
	StatusDone TaskStatus = "done"
)

// TaskRow is a single node on the board.
type TaskRow struct {
	Name      string
	Status    TaskStatus
	Outcome   domain.Outcome
	Err       error
	StartTime time.Time
	Duration  time.Duration
	tail      []string
	partial   string
}

// Model is the bubbletea model for the task board.
type Model struct {
	Rows        []*TaskRow
	NameMap     map[string]*TaskRow
	SpanMap     map[string]*TaskRow
	Targets     []string
	Width       int
	Done        bool
	TickEnabled bool
}

type tickMsg time.Time

// NewModel creates a TUI model rendering to w.
func NewModel(w io.Writer) Model {
	if w == nil {
		w = os.Stderr
	}

	out := output.New(w)
	lipgloss.SetColorProfile(out.Profile)

	return Model{
		NameMap:     make(map[string]*TaskRow),
		SpanMap:     make(map[string]*TaskRow),
		TickEnabled: true,
	}
}

// WithDisableTick disables the periodic redraw loop, for tests.
func (m Model) WithDisableTick() Model {
	m.TickEnabled = false
	return m
}

// Init starts the tick loop.
func (m Model) Init() tea.Cmd {
	if !m.TickEnabled {
		return nil
	}
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(defaultTickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles incoming messages and updates the board state.
//
//nolint:gocritic // tea.Model interface passes the model by value
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case tickMsg:
		if m.TickEnabled && !m.Done {
			return m, tick()
		}

	case MsgInitTasks:
		m.Targets = msg.Targets
		m.Rows = make([]*TaskRow, 0, len(msg.Nodes))
		m.NameMap = make(map[string]*TaskRow, len(msg.Nodes))
		for _, name := range msg.Nodes {
			row := &TaskRow{Name: name, Status: StatusPending}
			m.Rows = append(m.Rows, row)
			m.NameMap[name] = row
		}

	case MsgTaskStart:
		row, ok := m.NameMap[msg.Name]
		if !ok {
			row = &TaskRow{Name: msg.Name}
			m.Rows = append(m.Rows, row)
			m.NameMap[msg.Name] = row
		}
		row.Status = StatusRunning
		row.StartTime = msg.StartTime
		m.SpanMap[msg.SpanID] = row

	case MsgTaskLog:
		if row, ok := m.SpanMap[msg.SpanID]; ok {
			row.appendLog(msg.Data)
		}

	case MsgTaskComplete:
		if row, ok := m.SpanMap[msg.SpanID]; ok {
			row.Status = StatusDone
			row.Outcome = msg.Outcome
			row.Err = msg.Err
			if !row.StartTime.IsZero() {
				row.Duration = msg.EndTime.Sub(row.StartTime)
			}
		}
	}

	return m, nil
}

// appendLog folds a chunk of output into the row's tail window.
func (r *TaskRow) appendLog(data []byte) {
	text := r.partial + string(data)
	lines := strings.Split(text, "\n")
	r.partial = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSuffix(line, "\r")
		r.tail = append(r.tail, line)
	}
	if len(r.tail) > logTailLines {
		r.tail = r.tail[len(r.tail)-logTailLines:]
	}
}

// View renders the task board.
//
//nolint:gocritic // tea.Model interface passes the model by value
func (m Model) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(style.Teal)
	b.WriteString(header.Render(fmt.Sprintf("mono run %s", strings.Join(m.Targets, " "))))
	b.WriteString("\n\n")

	for _, row := range m.Rows {
		b.WriteString(m.renderRow(row))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderRow(row *TaskRow) string {
	var icon string
	var color lipgloss.Color

	switch row.Status {
	case StatusPending:
		icon, color = style.Circle, style.Slate
	case StatusRunning:
		icon, color = style.Dot, style.Yellow
	case StatusDone:
		icon, color = style.OutcomeIcon(row.Outcome), style.OutcomeColor(row.Outcome)
	}

	line := lipgloss.NewStyle().Foreground(color).Render(icon) + " " + row.Name

	switch {
	case row.Status == StatusRunning && !row.StartTime.IsZero():
		line += lipgloss.NewStyle().Foreground(style.Slate).
			Render(fmt.Sprintf("  %v", time.Since(row.StartTime).Round(time.Second)))
	case row.Status == StatusDone && row.Err != nil:
		line += lipgloss.NewStyle().Foreground(style.Red).
			Render("  " + row.Err.Error())
	case row.Status == StatusDone && row.Outcome == domain.OutcomeExecuted:
		line += lipgloss.NewStyle().Foreground(style.Slate).
			Render(fmt.Sprintf("  %v", row.Duration.Round(time.Millisecond)))
	}

	if row.Status == StatusRunning {
		faint := lipgloss.NewStyle().Foreground(style.Grey)
		for _, tail := range row.tail {
			line += "\n" + faint.Render("    "+tail)
		}
	}

	return line
}
