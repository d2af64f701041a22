package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ritzau/flowc/pkg/model"
)

// ErrInternal wraps a failure recovered inside CompileSafe
var ErrInternal = errors.New("internal compiler error")

// CompileSafe compiles the flow and turns any unexpected failure into a
// script made of a commented-out error banner. The error is returned as
// well so callers can log it.
func CompileSafe(flow *model.Flow, opts ...Option) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternal, r)
			res = &Result{
				Script:      ErrorScript("Error compiling flow", err),
				Imports:     []string{},
				Order:       []string{},
				Diagnostics: []Diagnostic{},
			}
		}
	}()
	return Compile(flow, opts...), nil
}

// ErrorScript renders an error as an inert, fully commented script
func ErrorScript(title string, err error) string {
	var b strings.Builder
	b.WriteString("# " + commentText(title) + "\n")
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			b.WriteString(strings.TrimRight("# "+line, " ") + "\n")
		}
	}
	return b.String()
}
