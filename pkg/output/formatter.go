package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/harness"
	"github.com/ritzau/flowc/pkg/model"
)

// PrintCompileReport prints a colored summary of a compilation: structural
// issues found in the flow followed by the compiler's diagnostics
func PrintCompileReport(w io.Writer, source string, flow *model.Flow, issues []model.Issue, result *compiler.Result) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "flowc - Compile Report")
	bold.Fprintln(w, "======================")
	fmt.Fprintf(w, "Flow: %s (%s)\n", flow.Name, source)
	fmt.Fprintf(w, "Nodes: %d, connections: %d\n", len(flow.Nodes), len(flow.Connections))
	fmt.Fprintf(w, "Imports: %d\n", len(result.Imports))
	if packages := harness.PackagesFromImports(result.Imports); len(packages) > 0 {
		cyan.Fprintf(w, "Packages: %v\n", packages)
	}
	fmt.Fprintln(w)

	if len(issues) > 0 {
		red.Fprintln(w, "FLOW ISSUES:")
		for _, issue := range issues {
			yellow.Fprintf(w, "  %s\n", issue.Kind)
			fmt.Fprintf(w, "    %s\n", issue.Message)
		}
		fmt.Fprintln(w)
	}

	warnings := result.Warnings()
	infos := len(result.Diagnostics) - len(warnings)
	if len(result.Diagnostics) > 0 {
		bold.Fprintln(w, "DIAGNOSTICS:")
		for _, d := range result.Diagnostics {
			c := cyan
			if d.Severity == compiler.SeverityWarning {
				c = yellow
			}
			c.Fprintf(w, "  [%s] %s\n", d.Severity, d.Code)
			fmt.Fprintf(w, "    %s\n", d.Message)
		}
		fmt.Fprintln(w)
	}

	summaryColor := green
	if infos > 0 {
		summaryColor = cyan
	}
	if len(warnings) > 0 {
		summaryColor = yellow
	}
	if len(issues) > 0 {
		summaryColor = red
	}

	summaryColor.Fprintf(w, "Summary: %d node(s) compiled, %d issue(s), %d warning(s), %d note(s)\n",
		len(result.Order), len(issues), len(warnings), infos)

	if len(issues) == 0 && len(warnings) == 0 {
		green.Fprintln(w, "✓ Flow compiled cleanly")
	}
}

// PrintRunReport prints the text a script printed followed by where its
// figures went
func PrintRunReport(w io.Writer, run *harness.RunResult) {
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	for _, line := range run.Output.Lines {
		fmt.Fprintln(w, line)
	}

	if len(run.Output.Figures) > 0 {
		fmt.Fprintln(w)
		bold.Fprintf(w, "Figures: %d\n", len(run.Output.Figures))
		for _, path := range run.Files {
			green.Fprintf(w, "  %s\n", path)
		}
	}

	for _, warning := range run.Output.Warnings {
		yellow.Fprintf(w, "Warning: %s\n", warning)
	}
}
