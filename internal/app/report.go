package app

import (
	"fmt"
	"io"
	"time"

	"go.trai.ch/mono/internal/core/domain"
)

// writeSummary prints the per-run report: aggregate counts, elapsed time
// and every node that did not finish.
func writeSummary(w io.Writer, res *domain.RunResult, elapsed time.Duration) {
	if res == nil {
		return
	}

	hits, executed, failed, skipped := res.Counts()
	total := len(res.Results)

	fmt.Fprintln(w)
	fmt.Fprintf(w, " Tasks:    %d successful, %d total\n", hits+executed, total)
	fmt.Fprintf(w, "Cached:    %d cached, %d total\n", hits, total)
	fmt.Fprintf(w, "  Time:    %s\n", elapsed.Round(time.Millisecond))

	problems := res.Problems()
	if len(problems) == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, p := range problems {
		switch p.Outcome {
		case domain.OutcomeFailed:
			if p.Err != nil {
				fmt.Fprintf(w, "Failed:    %s (%v)\n", p.Node.String(), p.Err)
				continue
			}
			fmt.Fprintf(w, "Failed:    %s (exit %d)\n", p.Node.String(), p.ExitCode)
		case domain.OutcomeSkipped:
			fmt.Fprintf(w, "Skipped:   %s\n", p.Node.String())
		}
	}
	if failed > 0 || skipped > 0 {
		fmt.Fprintf(w, "\n%d failed, %d skipped\n", failed, skipped)
	}
}
