// Package gradle runs a workspace's gradle wrapper.
package gradle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
)

// Runner executes gradle tasks in a workspace.
type Runner interface {
	// Run executes args with the wrapper in dir using the JDK for javaVersion.
	Run(ctx context.Context, dir string, javaVersion int, args ...string) error
}

// Wrapper implements Runner with the gradlew script of the workspace. Its
// output is streamed, since tasks like runClient are interactive.
type Wrapper struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	getenv func(string) string
	logger *slog.Logger
}

// NewWrapper creates a runner attached to the process's standard streams
func NewWrapper(logger *slog.Logger) *Wrapper {
	return &Wrapper{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		getenv: os.Getenv,
		logger: logger,
	}
}

// JDKHomeVar is the environment variable naming the JDK for a Java version.
func JDKHomeVar(javaVersion int) string {
	return fmt.Sprintf("JDK%d_HOME", javaVersion)
}

// ScriptName is the wrapper script for the host OS.
func ScriptName() string {
	if runtime.GOOS == "windows" {
		return "gradlew.bat"
	}
	return "gradlew"
}

// Run executes the gradle wrapper with JAVA_HOME taken from JDK<N>_HOME
func (w *Wrapper) Run(ctx context.Context, dir string, javaVersion int, args ...string) error {
	envVar := JDKHomeVar(javaVersion)
	javaHome := w.getenv(envVar)
	if javaHome == "" {
		return errkind.New(errkind.NotFound, "could not find %s environment variable", envVar)
	}

	script := filepath.Join(dir, ScriptName())
	if _, err := os.Stat(script); err != nil {
		return errkind.Wrap(errkind.NotFound, err, "gradle wrapper not found in %s", dir)
	}

	w.logger.Info("running gradle", "tasks", strings.Join(args, " "), "java", javaVersion)

	cmd := exec.CommandContext(ctx, script, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "JAVA_HOME="+javaHome)
	cmd.Stdin = w.Stdin
	cmd.Stdout = w.Stdout
	cmd.Stderr = w.Stderr
	if err := cmd.Run(); err != nil {
		return errkind.Tool(ctx, "gradlew "+strings.Join(args, " "), err, nil)
	}
	return nil
}
