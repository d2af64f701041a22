package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/logging"
)

// ErrNoScript is returned when asked to run an empty compilation
var ErrNoScript = errors.New("no script to run")

// Runner executes compiled flows one at a time
type Runner struct {
	executor   Executor
	install    bool
	figuresDir string
	mu         sync.Mutex // runs share the working directory
}

// RunnerOptions configures a Runner
type RunnerOptions struct {
	// Install third-party packages before running, when the executor can
	Install bool
	// FiguresDir receives figure-N.png files; empty disables writing
	FiguresDir string
}

// RunResult is the outcome of one script run
type RunResult struct {
	Packages []string `json:"packages"`
	Output   *Output  `json:"output"`
	Stderr   string   `json:"stderr,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// NewRunner creates a runner around an executor
func NewRunner(executor Executor, opts RunnerOptions) *Runner {
	return &Runner{
		executor:   executor,
		install:    opts.Install,
		figuresDir: opts.FiguresDir,
	}
}

// Run installs what the script imports, executes it and interprets its
// output. A failing script still returns the output it produced.
func (r *Runner) Run(ctx context.Context, result *compiler.Result) (*RunResult, error) {
	if result == nil || result.Script == "" {
		return nil, ErrNoScript
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	packages := PackagesFromImports(result.Imports)
	logging.InfoContext(ctx, "running flow", "nodes", len(result.Order), "packages", packages)

	if installer, ok := r.executor.(Installer); ok && r.install && len(packages) > 0 {
		logging.DebugContext(ctx, "installing packages", "packages", packages)
		if err := installer.Install(ctx, packages); err != nil {
			return nil, fmt.Errorf("installing packages: %w", err)
		}
	}

	stdout, stderr, runErr := r.executor.Run(ctx, result.Script)

	out, err := ParseOutput(bytes.NewReader(stdout))
	if err != nil {
		return nil, err
	}
	for _, w := range out.Warnings {
		logging.WarnContext(ctx, "bad figure output", "warning", w)
	}

	run := &RunResult{
		Packages: packages,
		Output:   out,
		Stderr:   string(stderr),
	}

	if r.figuresDir != "" && len(out.Figures) > 0 {
		files, err := WriteFigures(r.figuresDir, out.Figures)
		if err != nil {
			return run, err
		}
		run.Files = files
	}

	logging.InfoContext(ctx, "flow finished",
		"lines", len(out.Lines),
		"figures", len(out.Figures),
		"failed", runErr != nil)

	if runErr != nil {
		return run, fmt.Errorf("running script: %w", runErr)
	}
	return run, nil
}

// WriteFigures stores figures as figure-<index>.png under dir and returns
// the written paths
func WriteFigures(dir string, figures []Figure) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating figures directory: %w", err)
	}

	paths := make([]string, 0, len(figures))
	for _, f := range figures {
		path := filepath.Join(dir, fmt.Sprintf("figure-%d.png", f.Index))
		if err := os.WriteFile(path, f.PNG, 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
