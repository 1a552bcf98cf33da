package ports

import (
	"context"
	"io"
)

// Span attribute keys shared between the scheduler and the telemetry
// adapters.
const (
	// OutcomeAttribute carries the terminal outcome of a task node.
	OutcomeAttribute = "mono.outcome"
	// FingerprintAttribute carries the computed cache key of a task node.
	FingerprintAttribute = "mono.fingerprint"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals the set of planned nodes, their dependency map and
	// the user-requested targets before execution starts.
	EmitPlan(ctx context.Context, nodes []string, deps map[string][]string, targets []string)
}

// Span represents a unit of work. Writing to a span streams task output.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Placeholder to support the option pattern.
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)
