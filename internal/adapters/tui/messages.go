package tui

import (
	"time"

	"go.trai.ch/mono/internal/core/domain"
)

// MsgInitTasks resets the task board to the planned node list.
type MsgInitTasks struct {
	Nodes        []string
	Dependencies map[string][]string
	Targets      []string
}

// MsgTaskStart marks a node as running.
type MsgTaskStart struct {
	SpanID    string
	Name      string
	StartTime time.Time
}

// MsgTaskLog carries a chunk of output for a node.
type MsgTaskLog struct {
	SpanID string
	Data   []byte
}

// MsgTaskComplete marks a node as finished.
type MsgTaskComplete struct {
	SpanID  string
	EndTime time.Time
	Outcome domain.Outcome
	Err     error
}
