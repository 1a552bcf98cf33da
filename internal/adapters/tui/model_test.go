package tui_test

import (
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/adapters/tui"
	"go.trai.ch/mono/internal/core/domain"
)

func newTestModel(t *testing.T) tui.Model {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	return tui.NewModel(io.Discard).WithDisableTick()
}

func update(m tui.Model, msg tea.Msg) tui.Model {
	next, _ := m.Update(msg)
	return next.(tui.Model)
}

func TestModel_InitTasks(t *testing.T) {
	m := newTestModel(t)
	m = update(m, tui.MsgInitTasks{
		Nodes:   []string{"core:build", "app:build"},
		Targets: []string{"build"},
	})

	require.Len(t, m.Rows, 2)
	assert.Equal(t, tui.StatusPending, m.Rows[0].Status)

	view := m.View()
	assert.Contains(t, view, "mono run build")
	assert.Contains(t, view, "core:build")
	assert.Contains(t, view, "app:build")
}

func TestModel_TaskLifecycle(t *testing.T) {
	m := newTestModel(t)
	m = update(m, tui.MsgInitTasks{Nodes: []string{"core:build"}})

	start := time.Now()
	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: "core:build", StartTime: start})
	assert.Equal(t, tui.StatusRunning, m.Rows[0].Status)

	m = update(m, tui.MsgTaskLog{SpanID: "s1", Data: []byte("compiling\n")})
	assert.Contains(t, m.View(), "compiling")

	m = update(m, tui.MsgTaskComplete{
		SpanID:  "s1",
		EndTime: start.Add(2 * time.Second),
		Outcome: domain.OutcomeExecuted,
	})
	assert.Equal(t, tui.StatusDone, m.Rows[0].Status)
	assert.Equal(t, 2*time.Second, m.Rows[0].Duration)
}

func TestModel_FailedTaskShowsError(t *testing.T) {
	m := newTestModel(t)
	m = update(m, tui.MsgInitTasks{Nodes: []string{"app:test"}})
	m = update(m, tui.MsgTaskStart{SpanID: "s1", Name: "app:test", StartTime: time.Now()})
	m = update(m, tui.MsgTaskComplete{
		SpanID:  "s1",
		EndTime: time.Now(),
		Outcome: domain.OutcomeFailed,
		Err:     errors.New("exit status 2"),
	})

	assert.Contains(t, m.View(), "exit status 2")
}

func TestModel_QuitKey(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
}
