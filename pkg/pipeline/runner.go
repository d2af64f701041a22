// Package pipeline ties loading, compiling, running and publishing of flow
// files together for the command line and watch modes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/flowfile"
	"github.com/ritzau/flowc/pkg/harness"
	"github.com/ritzau/flowc/pkg/logging"
	"github.com/ritzau/flowc/pkg/model"
	"github.com/ritzau/flowc/pkg/output"
	"github.com/ritzau/flowc/pkg/pubsub"
	"github.com/ritzau/flowc/pkg/watcher"
)

// ErrNoFlows is returned when a directory holds no flow files
var ErrNoFlows = errors.New("no flow files found")

// Publisher receives compilation and run events
type Publisher interface {
	Publish(topic string, eventType string, data interface{}) error
}

// Config wires a Runner. Every field is optional.
type Config struct {
	Publisher Publisher
	Harness   *harness.Runner // executes scripts when a run is requested
	Out       string          // script destination file; Script is used when empty
	Script    io.Writer       // script destination when Out is empty
	Report    io.Writer       // colored compile and run reports
	Clock     func() time.Time
}

// Outcome is everything produced for one flow file
type Outcome struct {
	Path   string
	Flow   *model.Flow
	Issues []model.Issue
	Result *compiler.Result
	Run    *harness.RunResult
}

// Options configures one pass
type Options struct {
	Run    bool
	Reason string // e.g. "initial compile", "flow changed"
}

// Runner compiles flow files one at a time
type Runner struct {
	cfg Config
	mu  sync.Mutex // one pass at a time; passes share the output file
}

// NewRunner creates a runner
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Process loads, compiles and optionally runs one flow file. A flow that
// fails to load is published as a failed compilation.
func (r *Runner) Process(ctx context.Context, path string, opts Options) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.InfoContext(ctx, "compiling flow", "path", path, "reason", opts.Reason)

	flow, err := flowfile.Load(path)
	if err != nil {
		r.publish(pubsub.TopicCompilation, pubsub.EventFailed, pubsub.Compilation{Source: path, Error: err.Error()})
		return nil, err
	}

	out := &Outcome{Path: path, Flow: flow, Issues: flow.Validate()}
	for _, issue := range out.Issues {
		logging.WarnContext(ctx, "flow issue", "kind", issue.Kind, "message", issue.Message)
	}

	compileOpts := []compiler.Option{compiler.WithLogger(logging.New("compiler"))}
	if r.cfg.Clock != nil {
		compileOpts = append(compileOpts, compiler.WithClock(r.cfg.Clock))
	}
	result, err := compiler.CompileSafe(flow, compileOpts...)
	if err != nil {
		logging.ErrorContext(ctx, "compiler failed", "path", path, "error", err)
	}
	out.Result = result
	for _, d := range result.Warnings() {
		logging.WarnContext(ctx, "compile diagnostic", "code", d.Code, "node", d.NodeID, "message", d.Message)
	}

	packages := harness.PackagesFromImports(result.Imports)
	compilation := pubsub.NewCompilation(path, flow, result, packages)
	if err != nil {
		compilation.Error = err.Error()
	}
	r.publish(pubsub.TopicCompilation, pubsub.EventCompiled, compilation)

	if err := r.writeScript(result.Script); err != nil {
		return out, err
	}
	if r.cfg.Report != nil {
		output.PrintCompileReport(r.cfg.Report, path, flow, out.Issues, result)
	}

	if !opts.Run || r.cfg.Harness == nil || errors.Is(err, compiler.ErrInternal) {
		return out, err
	}

	r.publish(pubsub.TopicRun, pubsub.EventRunning, map[string]string{"source": path})
	run, runErr := r.cfg.Harness.Run(ctx, result)
	out.Run = run
	if run != nil {
		r.publish(pubsub.TopicRun, pubsub.EventFinished, run)
		if r.cfg.Report != nil {
			output.PrintRunReport(r.cfg.Report, run)
		}
	}
	if runErr != nil {
		r.publish(pubsub.TopicRun, pubsub.EventFailed, map[string]string{"source": path, "error": runErr.Error()})
		return out, runErr
	}
	return out, nil
}

// Targets expands path into the flow files it names: the file itself, or
// every flow file below a directory
func Targets(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := flowfile.Find(path)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFlows, path)
	}
	return files, nil
}

// ProcessPath processes a flow file, or every flow file below a directory.
// All files are attempted; the first error is returned.
func (r *Runner) ProcessPath(ctx context.Context, path string, opts Options) ([]*Outcome, error) {
	targets, err := Targets(path)
	if err != nil {
		return nil, err
	}
	if len(targets) > 1 && r.cfg.Out != "" {
		return nil, fmt.Errorf("cannot write the scripts of %d flows to %s", len(targets), r.cfg.Out)
	}

	var (
		outcomes []*Outcome
		first    error
	)
	for _, target := range targets {
		out, err := r.Process(ctx, target, opts)
		if out != nil {
			outcomes = append(outcomes, out)
		}
		if err != nil {
			logging.ErrorContext(ctx, "flow failed", "path", target, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return outcomes, first
}

func (r *Runner) publish(topic, eventType string, data interface{}) {
	if r.cfg.Publisher == nil {
		return
	}
	if err := r.cfg.Publisher.Publish(topic, eventType, data); err != nil {
		logging.Warn("failed to publish event", "topic", topic, "type", eventType, "error", err)
	}
}

func (r *Runner) writeScript(script string) error {
	if r.cfg.Out != "" {
		if err := os.WriteFile(r.cfg.Out, []byte(script), 0o644); err != nil {
			return fmt.Errorf("writing script: %w", err)
		}
		logging.Debug("wrote script", "path", r.cfg.Out, "bytes", len(script))
		return nil
	}
	if r.cfg.Script != nil {
		if _, err := io.WriteString(r.cfg.Script, script); err != nil {
			return fmt.Errorf("writing script: %w", err)
		}
	}
	return nil
}

// Handle applies a debounced change: changed flows are recompiled, and run
// again when the analysis asks for it. Failures are logged, not returned,
// so one bad save does not end a watch session.
func (r *Runner) Handle(ctx context.Context, analysis *watcher.ChangeAnalysis) {
	for _, path := range analysis.Lost {
		logging.WarnContext(ctx, "watched flow disappeared", "path", path)
	}
	if !analysis.Recompile {
		return
	}
	for _, path := range analysis.ChangedFiles {
		if _, err := r.Process(ctx, path, Options{Run: analysis.Rerun, Reason: "flow changed"}); err != nil {
			logging.ErrorContext(ctx, "recompile failed", "path", path, "error", err)
		}
	}
}

// WatchOptions configures Watch
type WatchOptions struct {
	Run         bool
	QuietPeriod time.Duration
	MaxWait     time.Duration
}

// Watch recompiles the given flow files, or flows in the given
// directories, whenever they change. It blocks until ctx is done.
func (r *Runner) Watch(ctx context.Context, paths []string, opts WatchOptions) error {
	fw, err := watcher.NewFileWatcher(paths...)
	if err != nil {
		return err
	}
	fw.Start(ctx)

	quiet, maxWait := opts.QuietPeriod, opts.MaxWait
	if quiet <= 0 {
		quiet = 300 * time.Millisecond
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	debouncer := watcher.NewDebouncer(fw.Events(), quiet, maxWait)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		logging.DebugContext(ctx, "change detected", "type", event.Type, "paths", event.Paths)
		r.Handle(ctx, watcher.AnalyzeChanges(event, opts.Run))
	}
	return ctx.Err()
}
