package gateway

import (
	"context"
	"os/exec"
	"time"
)

// Executor runs an external command and returns its combined output.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// commandExecutor runs real processes, each under its own timeout.
type commandExecutor struct {
	timeout time.Duration
}

func (e commandExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	/* #nosec */
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
