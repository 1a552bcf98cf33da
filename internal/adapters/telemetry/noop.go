package telemetry

import (
	"context"

	"go.trai.ch/mono/internal/core/ports"
)

// NoOpTracer is a Tracer that records nothing. It backs runs where no
// renderer is attached, such as unit tests.
type NoOpTracer struct{}

// NewNoOpTracer returns a tracer that discards everything.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// Start returns the context unchanged and a span that discards all input.
func (t *NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, &NoOpSpan{}
}

// EmitPlan does nothing.
func (t *NoOpTracer) EmitPlan(_ context.Context, _ []string, _ map[string][]string, _ []string) {
}

// NoOpSpan discards all span operations.
type NoOpSpan struct{}

// End does nothing.
func (s *NoOpSpan) End() {}

// RecordError does nothing.
func (s *NoOpSpan) RecordError(error) {}

// SetAttribute does nothing.
func (s *NoOpSpan) SetAttribute(string, any) {}

// Write discards the data.
func (s *NoOpSpan) Write(p []byte) (int, error) {
	return len(p), nil
}

var (
	_ ports.Tracer = (*NoOpTracer)(nil)
	_ ports.Span   = (*NoOpSpan)(nil)
)
