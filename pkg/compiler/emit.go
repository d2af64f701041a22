package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ritzau/flowc/pkg/cycles"
	"github.com/ritzau/flowc/pkg/graph"
	"github.com/ritzau/flowc/pkg/model"
	"github.com/ritzau/flowc/pkg/pyparse"
)

const indent = "    "

// FigurePrefix marks a stdout line carrying a base64 PNG
const FigurePrefix = "MATPLOTLIB_FIGURE_BASE64:"

type portKey struct {
	node, port string
}

type function struct {
	name  string
	empty bool
}

// compilation holds the state of one Compile call
type compilation struct {
	flow     *model.Flow
	opts     options
	names    *nodeNames
	imports  *importSet
	defs     []string
	defined  map[string]string // function name -> emitted body
	funcs    map[*model.Node]function
	previews map[*model.Node]string // compact JSON rows per tabular input
	vars     map[portKey]string
	diags    []Diagnostic
}

func newCompilation(flow *model.Flow, o options) *compilation {
	return &compilation{
		flow:     flow,
		opts:     o,
		names:    newNodeNames(),
		imports:  newImportSet(baseImports...),
		defined:  make(map[string]string),
		funcs:    make(map[*model.Node]function),
		previews: make(map[*model.Node]string),
		vars:     make(map[portKey]string),
		diags:    []Diagnostic{},
	}
}

func (c *compilation) warn(code DiagnosticCode, nodeID, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Code:     code,
		Severity: SeverityWarning,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// order returns the nodes in dependency order, or in canvas order when the
// graph has a cycle
func (c *compilation) order() []*model.Node {
	fg := graph.BuildFlowGraph(c.flow)

	for _, conn := range fg.Dangling() {
		c.diags = append(c.diags, Diagnostic{
			Code:         CodeDanglingConnection,
			Severity:     SeverityWarning,
			ConnectionID: conn.ID,
			Message: fmt.Sprintf("connection %q references a missing node (%q -> %q) and is ignored",
				conn.ID, conn.SourceNodeID, conn.TargetNodeID),
		})
	}

	sorted, complete := fg.TopologicalOrder()
	if complete {
		return sorted
	}

	found := cycles.FindFlowCycles(fg)
	msg := "flow contains a cycle"
	for _, cyc := range found {
		msg += " [" + cyc.String() + "]"
	}
	c.warn(CodeCycle, "", "%s; nodes are ordered by canvas position instead", msg)
	c.blocked(fg, sorted, found)
	c.opts.logger.Debug("falling back to position order",
		"flow", c.flow.ID,
		"sorted", len(sorted),
		"nodes", len(fg.Nodes()),
		"cycles", len(found))

	return fg.PositionOrder()
}

// blocked notes every node that is not on a cycle itself but could not be
// ordered because something it reads from sits on or behind one
func (c *compilation) blocked(fg *graph.FlowGraph, sorted []*model.Node, found []cycles.FlowCycle) {
	placed := make(map[string]bool, len(sorted))
	for _, n := range sorted {
		placed[n.ID] = true
	}
	onCycle := make(map[string]bool)
	for _, cyc := range found {
		for _, id := range cyc.NodeIDs {
			onCycle[id] = true
		}
	}

	for _, n := range fg.Nodes() {
		if placed[n.ID] || onCycle[n.ID] {
			continue
		}
		var waits []string
		for _, dep := range fg.GetDependencies(n.ID) {
			if d, ok := fg.GetNode(dep); ok && !placed[dep] {
				waits = append(waits, fmt.Sprintf("%q", d.Name))
			}
		}
		c.diags = append(c.diags, Diagnostic{
			Code:     CodeBlockedByCycle,
			Severity: SeverityInfo,
			NodeID:   n.ID,
			Message:  fmt.Sprintf("node %q reads from %s, which cannot be ordered", n.Name, strings.Join(waits, ", ")),
		})
	}
}

// collect gathers imports, function definitions and output variables
func (c *compilation) collect(n *model.Node) {
	sid := c.names.assign(n)

	switch n.Kind {
	case model.KindFunction:
		c.collectFunction(n, sid)

	case model.KindCSVInput, model.KindExcelInput:
		c.imports.Add(pandasImport)
		if out := firstPort(n.Outputs); out != nil {
			c.vars[portKey{n.ID, out.ID}] = "df_" + sid
		}
		file, ok := n.FileInput()
		if !ok {
			c.invalidData(n)
			return
		}
		if file.Preview.HasJSON() {
			var buf bytes.Buffer
			if err := json.Compact(&buf, file.Preview.JSONData); err != nil {
				c.warn(CodeInvalidPreview, n.ID, "node %q: preview data is not valid JSON, falling back to a file load: %v", n.Name, err)
				return
			}
			c.imports.Add(jsonImport)
			c.previews[n] = buf.String()
		}

	case model.KindSubFlow:
		if _, ok := n.SubFlow(); !ok {
			c.invalidData(n)
		}

	case model.KindOutput:
		if _, ok := n.Output(); !ok {
			c.invalidData(n)
		}

	default:
		c.warn(CodeInvalidNode, n.ID, "node %q has unsupported type %q and is skipped", n.Name, n.Kind)
	}
}

func (c *compilation) invalidData(n *model.Node) {
	if n.Data == nil {
		return
	}
	c.warn(CodeInvalidNode, n.ID, "node %q of type %s carries %T data", n.Name, n.Kind, n.Data)
}

func (c *compilation) collectFunction(n *model.Node, sid string) {
	data, ok := n.Function()
	if !ok {
		c.invalidData(n)
		c.funcs[n] = function{empty: true}
		return
	}
	code := strings.ReplaceAll(data.Code, "\r\n", "\n")
	if strings.TrimSpace(code) == "" {
		c.funcs[n] = function{empty: true}
		return
	}

	var body []string
	for _, line := range strings.Split(code, "\n") {
		if pyparse.IsImportLine(line) {
			c.imports.Add(strings.TrimSpace(line))
			continue
		}
		body = append(body, line)
	}

	name, found := pyparse.FunctionName(code)
	if !found {
		name = "execute_default_" + sid
		c.warn(CodeMissingDefinition, n.ID, "node %q: no function definition found, calling %s", n.Name, name)
	}
	c.funcs[n] = function{name: name}

	text := dedent(body)
	if prev, exists := c.defined[name]; exists {
		if prev != text {
			c.warn(CodeDuplicateFunction, n.ID, "node %q redefines %s; the first definition is used", n.Name, name)
		}
	} else {
		c.defined[name] = text
		c.defs = append(c.defs, fmt.Sprintf("# --- Node: %s (%s) function definition ---\n%s\n# --- End of %s function definition ---",
			commentText(n.Name), commentText(n.ID), text, commentText(n.Name)))
	}

	outputs := nonNil(n.Outputs)
	switch len(outputs) {
	case 0:
	case 1:
		c.vars[portKey{n.ID, outputs[0].ID}] = fmt.Sprintf("%s_output_%s", name, sid)
	default:
		for i, p := range outputs {
			c.vars[portKey{n.ID, p.ID}] = fmt.Sprintf("%s_output_%d_%s", name, i, sid)
		}
	}
}

// assemble renders the complete script
func (c *compilation) assemble(order []*model.Node, stamp string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\"\"\"\nFlow: %s\nFlow ID: %s\n%s\n\"\"\"\n\n",
		docText(c.flow.Name), docText(c.flow.ID), headerStamp(stamp))

	b.WriteString(strings.Join(c.imports.List(), "\n"))
	b.WriteString("\n\n\n")

	for _, def := range c.defs {
		b.WriteString(def)
		b.WriteString("\n\n\n")
	}

	b.WriteString("def run_flow():\n")
	b.WriteString(indent + "\"\"\"Run every node of the flow in dependency order.\"\"\"\n")
	b.WriteString(indent + "print(\"Starting flow execution...\")\n\n")

	blocks := make([]string, 0, len(order))
	for _, n := range order {
		blocks = append(blocks, c.block(n))
	}
	if len(blocks) > 0 {
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString(indent + "print(\"Flow execution finished.\")\n")
	b.WriteString("\n\nif __name__ == \"__main__\":\n" + indent + "run_flow()\n")
	return b.String()
}

// block renders the driver statements of one node
func (c *compilation) block(n *model.Node) string {
	sid := c.names.assign(n)
	name := commentText(n.Name)

	lines := []string{fmt.Sprintf("# --- Begin node: %s (ID: %s) ---", name, commentText(n.ID))}
	switch n.Kind {
	case model.KindCSVInput, model.KindExcelInput:
		lines = append(lines, c.tabularLines(n, sid)...)
	case model.KindSubFlow:
		lines = append(lines, subFlowLines(n, sid)...)
	case model.KindFunction:
		lines = append(lines, c.callLines(n)...)
	case model.KindOutput:
		lines = append(lines, c.sinkLines(n, sid)...)
	default:
		lines = append(lines, fmt.Sprintf("# unsupported node type %q, skipped", commentText(string(n.Kind))))
	}
	lines = append(lines, fmt.Sprintf("# --- End node: %s ---", name))

	return indentLines(lines, indent)
}

func (c *compilation) tabularLines(n *model.Node, sid string) []string {
	v := "df_" + sid
	if rows, ok := c.previews[n]; ok {
		return []string{
			fmt.Sprintf("%s_json_data_str = %s", v, pyString(rows)),
			fmt.Sprintf("%s = pd.DataFrame(json.loads(%s_json_data_str))", v, v),
		}
	}

	source := "(no source file set)"
	if file, ok := n.FileInput(); ok && file.FileName != "" {
		source = fmt.Sprintf("(source file: '%s')", commentText(file.FileName))
	}
	if n.Kind == model.KindExcelInput {
		return []string{fmt.Sprintf(`%s = pd.read_excel("your_excel_file_path.xlsx")  # TODO: replace with the real Excel file path %s`, v, source)}
	}
	return []string{fmt.Sprintf(`%s = pd.read_csv("your_csv_file_path.csv")  # TODO: replace with the real CSV file path %s`, v, source)}
}

func subFlowLines(n *model.Node, sid string) []string {
	ref := "unknown sub-flow"
	if sub, ok := n.SubFlow(); ok && sub.SubFlowID != "" {
		ref = commentText(sub.SubFlowID)
	}
	return []string{
		fmt.Sprintf("# Sub-flow: %s (flow ID: %s)", commentText(n.Name), ref),
		fmt.Sprintf("# sub_flow_output_%s = run_sub_flow_%s(...)  # TODO: sub-flows are not expanded", sid, sid),
	}
}

// argument is one call argument, optionally followed by a comment
type argument struct {
	text    string
	comment string
}

func (c *compilation) callLines(n *model.Node) []string {
	fn := c.funcs[n]
	if fn.empty {
		return []string{"# node has no code, nothing to call"}
	}

	var args []argument
	keyword := false
	for _, p := range nonNil(n.Inputs) {
		param := p.OriginalName
		if param == "" {
			param = p.Name
		}

		switch {
		case param == "/":
			continue
		case param == "*":
			// parameters after a bare * are keyword-only
			keyword = true
			continue
		}

		bound, ok := c.resolve(n.ID, p.ID)
		if strings.HasPrefix(param, "*") {
			// *args and **kwargs are simply left out when unbound
			if ok {
				stars := param[:len(param)-len(strings.TrimLeft(param, "*"))]
				args = append(args, argument{text: stars + bound})
			}
			continue
		}

		ident := Sanitize(param)
		if !ok {
			c.diags = append(c.diags, Diagnostic{
				Code:     CodeUnconnectedInput,
				Severity: SeverityInfo,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node %q: input %q is not connected and is passed as None", n.Name, p.Name),
			})
			args = append(args, argument{
				text:    ident + "=None",
				comment: fmt.Sprintf("TODO: provide a value for input '%s'", commentText(p.Name)),
			})
			keyword = true
			continue
		}
		if keyword {
			args = append(args, argument{text: ident + "=" + bound})
		} else {
			args = append(args, argument{text: bound})
		}
	}

	call := renderCall(fn.name, args)

	var targets []string
	for _, p := range nonNil(n.Outputs) {
		targets = append(targets, c.vars[portKey{n.ID, p.ID}])
	}
	if len(targets) == 0 {
		return strings.Split(call, "\n")
	}
	return strings.Split(strings.Join(targets, ", ")+" = "+call, "\n")
}

// renderCall puts arguments on one line unless one of them carries a
// comment, in which case every argument gets its own line so the comment
// cannot swallow the closing parenthesis
func renderCall(name string, args []argument) string {
	commented := false
	texts := make([]string, 0, len(args))
	for _, a := range args {
		texts = append(texts, a.text)
		if a.comment != "" {
			commented = true
		}
	}
	if !commented {
		return name + "(" + strings.Join(texts, ", ") + ")"
	}

	var b strings.Builder
	b.WriteString(name + "(\n")
	for _, a := range args {
		b.WriteString(indent + a.text + ",")
		if a.comment != "" {
			b.WriteString("  # " + a.comment)
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

func (c *compilation) sinkLines(n *model.Node, sid string) []string {
	in := firstPort(n.Inputs)
	if in == nil {
		return []string{fmt.Sprintf("print(%s)", pyString(n.Name+": no input connected"))}
	}

	v := "output_value_for_" + sid
	source, ok := c.resolve(n.ID, in.ID)
	if !ok {
		source = "None  # no source connected to " + commentText(n.Name)
	}

	return []string{
		fmt.Sprintf("%s = %s", v, source),
		fmt.Sprintf("if isinstance(%s, plt.Figure):", v),
		indent + "buf = BytesIO()",
		indent + fmt.Sprintf("%s.savefig(buf, format='png')", v),
		indent + fmt.Sprintf("plt.close(%s)", v),
		indent + "buf.seek(0)",
		indent + "img_str = base64.b64encode(buf.getvalue()).decode('utf-8')",
		indent + fmt.Sprintf(`print(f"%s{img_str}")`, FigurePrefix),
		"else:",
		indent + fmt.Sprintf(`print(f"%s: {%s}")`, fstringText(n.Name), v),
	}
}

// resolve returns the variable bound to an input port, if its connection
// leads to a known output
func (c *compilation) resolve(nodeID, portID string) (string, bool) {
	conn := c.flow.IncomingTo(nodeID, portID)
	if conn == nil {
		return "", false
	}
	v, ok := c.vars[portKey{conn.SourceNodeID, conn.SourceOutputID}]
	return v, ok
}

func indentLines(lines []string, prefix string) string {
	var b strings.Builder
	for i, l := range lines {
		for j, part := range strings.Split(l, "\n") {
			if i > 0 || j > 0 {
				b.WriteString("\n")
			}
			if part != "" {
				b.WriteString(prefix + part)
			}
		}
	}
	return b.String()
}

func nonNil(ports []*model.Port) []*model.Port {
	out := make([]*model.Port, 0, len(ports))
	for _, p := range ports {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func firstPort(ports []*model.Port) *model.Port {
	for _, p := range ports {
		if p != nil {
			return p
		}
	}
	return nil
}
