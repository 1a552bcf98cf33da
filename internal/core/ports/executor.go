package ports

import (
	"context"
	"io"

	"go.trai.ch/mono/internal/core/domain"
)

// Executor defines the interface for executing task commands.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the node's command with its working directory set to the
	// package root. env contains environment variables in "KEY=VALUE" form.
	// Output is streamed to stdout and stderr as it is produced.
	//
	// It returns the command's exit code. A non-nil error means the command
	// could not be run or was cut short (spawn failure, timeout); a non-zero
	// exit code with a nil error means the command ran and failed.
	Execute(ctx context.Context, node *domain.TaskNode, env []string, stdout, stderr io.Writer) (int, error)
}
