package linear_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/adapters/linear"
	"go.trai.ch/mono/internal/core/domain"
)

func newTestRenderer(t *testing.T) (*linear.Renderer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	return linear.NewRenderer(&stdout, &stderr), &stdout, &stderr
}

func TestRenderer_TaskLifecycle(t *testing.T) {
	r, stdout, stderr := newTestRenderer(t)

	start := time.Now()
	r.OnPlanEmit([]string{"core:build", "app:build"}, nil, []string{"build"})
	r.OnTaskStart("span-1", "core:build", start)
	r.OnTaskLog("span-1", []byte("compiling\n"))
	r.OnTaskComplete("span-1", start.Add(time.Second), domain.OutcomeExecuted, nil)

	assert.Contains(t, stderr.String(), "Running 2 task(s)")
	assert.Contains(t, stderr.String(), "[core:build] starting")
	assert.Contains(t, stdout.String(), "[core:build] compiling")
	assert.Contains(t, stderr.String(), "completed in 1s")
}

func TestRenderer_PartialLines(t *testing.T) {
	r, stdout, _ := newTestRenderer(t)

	start := time.Now()
	r.OnTaskStart("span-1", "core:build", start)
	r.OnTaskLog("span-1", []byte("par"))
	r.OnTaskLog("span-1", []byte("tial\nsecond"))

	// The partial trailing line stays buffered until completion.
	assert.Contains(t, stdout.String(), "[core:build] partial")
	assert.NotContains(t, stdout.String(), "second")

	r.OnTaskComplete("span-1", start, domain.OutcomeExecuted, nil)
	assert.Contains(t, stdout.String(), "[core:build] second")
}

func TestRenderer_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.Outcome
		err     error
		want    string
	}{
		{"cache hit", domain.OutcomeCacheHit, nil, "replayed from cache"},
		{"skipped", domain.OutcomeSkipped, nil, "skipped"},
		{"failed", domain.OutcomeFailed, errors.New("exit status 2"), "failed after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, stderr := newTestRenderer(t)
			start := time.Now()
			r.OnTaskStart("span-1", "app:test", start)
			r.OnTaskComplete("span-1", start, tt.outcome, tt.err)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestRenderer_UnknownSpanIgnored(t *testing.T) {
	r, stdout, _ := newTestRenderer(t)

	r.OnTaskLog("ghost", []byte("data\n"))
	r.OnTaskComplete("ghost", time.Now(), domain.OutcomeExecuted, nil)

	require.Empty(t, stdout.String())
}
