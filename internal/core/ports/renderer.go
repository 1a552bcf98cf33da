package ports

import (
	"context"
	"time"

	"go.trai.ch/mono/internal/core/domain"
)

// Renderer is the abstraction for output rendering. It decouples telemetry
// collection from presentation, so the same event stream can drive either a
// rich TUI or linear CI logs.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle. Asynchronous
	// renderers may launch background goroutines here.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush any
	// buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called once the task graph has been planned.
	// nodes is the execution-ordered node list, deps the dependency map,
	// targets the user-requested task names.
	OnPlanEmit(nodes []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a node begins hashing/execution.
	OnTaskStart(spanID, name string, startTime time.Time)

	// OnTaskLog is called when a node emits output. data may contain
	// partial lines or ANSI sequences.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a node reaches a terminal state.
	OnTaskComplete(spanID string, endTime time.Time, outcome domain.Outcome, err error)
}
