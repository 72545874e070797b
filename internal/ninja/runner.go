package ninja

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/schaermu/mcmod/internal/errkind"
)

// Runner applies a build description.
type Runner interface {
	// Run executes ninja in dir, which holds build.ninja.
	Run(ctx context.Context, dir string) error
}

// ShellRunner implements Runner by shelling out to the ninja command
type ShellRunner struct {
	binary string
	logger *slog.Logger
}

// NewShellRunner creates a runner using the ninja binary on PATH
func NewShellRunner(logger *slog.Logger) *ShellRunner {
	return &ShellRunner{binary: "ninja", logger: logger}
}

// Run executes ninja and reports a non-zero exit as an external tool failure
func (r *ShellRunner) Run(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, r.binary)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errkind.Tool(ctx, "ninja", err, output)
	}
	r.logger.Debug("ninja finished", "dir", dir, "output", string(output))
	return nil
}
