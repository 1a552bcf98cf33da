package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
)

// Renderer wraps the task board model as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	errCh   chan error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		errCh:   make(chan error, 1),
	}
}

// Start launches the TUI in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop signals the TUI to quit.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the TUI has terminated.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit forwards plan initialization to the board.
func (r *Renderer) OnPlanEmit(nodes []string, deps map[string][]string, targets []string) {
	r.program.Send(MsgInitTasks{Nodes: nodes, Dependencies: deps, Targets: targets})
}

// OnTaskStart forwards task start events to the board.
func (r *Renderer) OnTaskStart(spanID, name string, startTime time.Time) {
	r.program.Send(MsgTaskStart{SpanID: spanID, Name: name, StartTime: startTime})
}

// OnTaskLog forwards task output to the board.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.program.Send(MsgTaskLog{SpanID: spanID, Data: data})
}

// OnTaskComplete forwards task completion to the board.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, outcome domain.Outcome, err error) {
	r.program.Send(MsgTaskComplete{SpanID: spanID, EndTime: endTime, Outcome: outcome, Err: err})
}

var _ ports.Renderer = (*Renderer)(nil)
