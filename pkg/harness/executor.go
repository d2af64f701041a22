package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Executor runs a generated script
type Executor interface {
	Run(ctx context.Context, script string) (stdout, stderr []byte, err error)
}

// Installer provisions third-party packages before a run
type Installer interface {
	Install(ctx context.Context, packages []string) error
}

// DefaultExecutor runs scripts with a local Python interpreter
type DefaultExecutor struct {
	Python string // interpreter binary, "python3" when empty
	Dir    string // working directory for the script
}

// NewExecutor creates an executor for the given interpreter
func NewExecutor(python string) *DefaultExecutor {
	return &DefaultExecutor{Python: python}
}

func (e *DefaultExecutor) python() string {
	if e.Python == "" {
		return "python3"
	}
	return e.Python
}

// Run feeds the script to the interpreter on stdin.
// It respects the provided context for cancellation.
func (e *DefaultExecutor) Run(ctx context.Context, script string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, e.python(), "-")
	cmd.Dir = e.Dir
	cmd.Stdin = strings.NewReader(script)
	// figures are rendered off-screen
	cmd.Env = append(os.Environ(), "MPLBACKEND=Agg")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("python failed: %w\nStderr: %s", err, stderr.String())
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Install runs pip for the given packages
func (e *DefaultExecutor) Install(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"-m", "pip", "install", "--quiet"}, packages...)
	cmd := exec.CommandContext(ctx, e.python(), args...)
	cmd.Dir = e.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
