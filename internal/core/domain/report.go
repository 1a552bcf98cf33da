package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal classification of one task node.
type Outcome string

const (
	// OutcomeCacheHit means the node's result was replayed from the cache.
	OutcomeCacheHit Outcome = "cache-hit"
	// OutcomeExecuted means the node's command ran and exited zero.
	OutcomeExecuted Outcome = "executed"
	// OutcomeFailed means the node's command exited non-zero, timed out,
	// or an infrastructure error prevented it from completing.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means an upstream failure made the node unrunnable.
	OutcomeSkipped Outcome = "skipped"
)

// TaskResult is the per-node record in a run report.
type TaskResult struct {
	Node     InternedString
	Outcome  Outcome
	Duration time.Duration
	ExitCode int
	Err      error
}

// RunResult aggregates the outcome of one invocation. Results are ordered
// by the planned execution order and stable across runs.
type RunResult struct {
	ID      uuid.UUID
	Results []TaskResult
}

// NewRunResult creates an empty result with a fresh invocation ID.
func NewRunResult() *RunResult {
	return &RunResult{ID: uuid.New()}
}

// OK reports whether every node reached Done (cache hit or executed).
func (r *RunResult) OK() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed || res.Outcome == OutcomeSkipped {
			return false
		}
	}
	return true
}

// Counts returns the number of nodes per outcome.
func (r *RunResult) Counts() (hits, executed, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeCacheHit:
			hits++
		case OutcomeExecuted:
			executed++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	return hits, executed, failed, skipped
}

// Problems returns every failed or skipped result, in report order.
func (r *RunResult) Problems() []TaskResult {
	var out []TaskResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed || res.Outcome == OutcomeSkipped {
			out = append(out, res)
		}
	}
	return out
}
