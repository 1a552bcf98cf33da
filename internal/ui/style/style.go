// Package style provides shared UI styling primitives including colors and
// icons for consistent visual presentation across the CLI.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/mono/internal/core/domain"
)

// Palette.
var (
	Teal   = lipgloss.Color("#14B8A6")
	Slate  = lipgloss.Color("#667085")
	White  = lipgloss.Color("#FFFFFF")
	Ink    = lipgloss.Color("#0B0F19")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Grey   = lipgloss.Color("#98A2B3")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Replay  = "⟳"
	Dot     = "●"
	Circle  = "○"
	Skip    = "-"
)

// OutcomeIcon returns the icon shown next to a finished task.
func OutcomeIcon(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeCacheHit:
		return Replay
	case domain.OutcomeExecuted:
		return Check
	case domain.OutcomeFailed:
		return Cross
	case domain.OutcomeSkipped:
		return Skip
	default:
		return Circle
	}
}

// OutcomeColor returns the color paired with OutcomeIcon.
func OutcomeColor(outcome domain.Outcome) lipgloss.Color {
	switch outcome {
	case domain.OutcomeCacheHit:
		return Teal
	case domain.OutcomeExecuted:
		return Green
	case domain.OutcomeFailed:
		return Red
	case domain.OutcomeSkipped:
		return Grey
	default:
		return Slate
	}
}
