// Package compiler turns a flow into one self-contained Python script.
//
// Compilation never fails for malformed flows. Cycles, dangling connections
// and unbound inputs degrade to best-effort output and are reported as
// diagnostics next to the script.
package compiler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ritzau/flowc/pkg/logging"
	"github.com/ritzau/flowc/pkg/model"
)

// Severity grades a diagnostic
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DiagnosticCode identifies the kind of problem a diagnostic reports
type DiagnosticCode string

const (
	CodeCycle              DiagnosticCode = "cycle"
	CodeDanglingConnection DiagnosticCode = "dangling-connection"
	CodeInvalidNode        DiagnosticCode = "invalid-node"
	CodeMissingDefinition  DiagnosticCode = "missing-definition"
	CodeDuplicateFunction  DiagnosticCode = "duplicate-function"
	CodeInvalidPreview     DiagnosticCode = "invalid-preview"
	CodeUnconnectedInput   DiagnosticCode = "unconnected-input"
	CodeBlockedByCycle     DiagnosticCode = "blocked-by-cycle"
)

// Diagnostic is a non-fatal finding produced while compiling
type Diagnostic struct {
	Code         DiagnosticCode `json:"code"`
	Severity     Severity       `json:"severity"`
	NodeID       string         `json:"nodeId,omitempty"`
	ConnectionID string         `json:"connectionId,omitempty"`
	Message      string         `json:"message"`
}

// Result is the output of a compilation
type Result struct {
	Script      string       `json:"script"`
	Imports     []string     `json:"imports"`     // de-duplicated, first-seen order
	Order       []string     `json:"order"`       // node ids in emission order
	Diagnostics []Diagnostic `json:"diagnostics"`
	GeneratedAt string       `json:"generatedAt"` // timestamp embedded in the header
}

// NormalizedTimestamp replaces the generation time in Normalized results
const NormalizedTimestamp = "<timestamp>"

// Normalized returns a copy of the result with the header timestamp
// replaced, so two compilations of the same flow compare equal
func (r *Result) Normalized() *Result {
	c := *r
	if r.GeneratedAt != "" {
		c.Script = strings.Replace(r.Script, headerStamp(r.GeneratedAt), headerStamp(NormalizedTimestamp), 1)
	}
	c.GeneratedAt = NormalizedTimestamp
	c.Imports = append([]string{}, r.Imports...)
	c.Order = append([]string{}, r.Order...)
	c.Diagnostics = append([]Diagnostic{}, r.Diagnostics...)
	return &c
}

// Warnings returns the diagnostics with warning severity
func (r *Result) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a compilation
type Option func(*options)

// WithClock sets the clock used for the header timestamp
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Compile generates the Python script for a flow. The flow is not modified
// and nothing is shared between calls, so concurrent compilations are safe.
func Compile(flow *model.Flow, opts ...Option) *Result {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New("compiler")
	}
	if flow == nil {
		flow = &model.Flow{}
	}

	c := newCompilation(flow, o)
	order := c.order()
	for _, n := range flow.Nodes {
		if n != nil {
			c.names.assign(n)
		}
	}
	for _, n := range order {
		c.collect(n)
	}

	stamp := o.now().UTC().Format(time.RFC3339)
	script := c.assemble(order, stamp)

	ids := make([]string, 0, len(order))
	for _, n := range order {
		ids = append(ids, n.ID)
	}

	o.logger.Debug("compiled flow",
		"flow", flow.ID,
		"nodes", len(order),
		"imports", len(c.imports.List()),
		"diagnostics", len(c.diags))

	return &Result{
		Script:      script,
		Imports:     c.imports.List(),
		Order:       ids,
		Diagnostics: c.diags,
		GeneratedAt: stamp,
	}
}

func headerStamp(ts string) string {
	return "Generated: " + ts
}
