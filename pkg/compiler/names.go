package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ritzau/flowc/pkg/model"
)

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Sanitize replaces every character that cannot appear in a Python
// identifier with an underscore
func Sanitize(id string) string {
	return nonIdentChars.ReplaceAllString(id, "_")
}

// nodeNames hands out one sanitized id per node. Ids that sanitize to the
// same text (say "a-b" and "a_b") get a numeric suffix so generated
// variables never collide.
type nodeNames struct {
	byNode map[*model.Node]string
	taken  map[string]bool
}

func newNodeNames() *nodeNames {
	return &nodeNames{
		byNode: make(map[*model.Node]string),
		taken:  make(map[string]bool),
	}
}

func (n *nodeNames) assign(node *model.Node) string {
	if sid, ok := n.byNode[node]; ok {
		return sid
	}
	base := Sanitize(node.ID)
	sid := base
	for i := 2; n.taken[sid]; i++ {
		sid = fmt.Sprintf("%s_%d", base, i)
	}
	n.taken[sid] = true
	n.byNode[node] = sid
	return sid
}

// pyString renders s as a double-quoted Python string literal. JSON string
// escaping is a subset of what Python accepts.
func pyString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // a string always encodes
	return strings.TrimSuffix(buf.String(), "\n")
}

// fstringText escapes s for the literal part of a double-quoted f-string
func fstringText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"{", "{{",
		"}", "}}",
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(s)
}

// commentText keeps s on a single comment line
func commentText(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\r", " ")), " ")
}

// docText escapes s for a line inside a triple-quoted docstring
func docText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"""`, `\"\"\"`)
	return commentText(s)
}

// dedent removes the whitespace prefix shared by all non-blank lines and
// drops leading and trailing blank lines
func dedent(lines []string) string {
	prefix, found := "", false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if !found {
			prefix, found = indent, true
			continue
		}
		prefix = commonPrefix(prefix, indent)
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimRight(strings.TrimPrefix(l, prefix), " \t"))
	}

	start, end := 0, len(out)
	for start < end && out[start] == "" {
		start++
	}
	for end > start && out[end-1] == "" {
		end--
	}
	return strings.Join(out[start:end], "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
