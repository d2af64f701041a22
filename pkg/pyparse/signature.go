// Package pyparse extracts function signatures from Python source using a
// lightweight line scanner. It is a heuristic, not a grammar: single-line
// headers and single-line return statements are assumed.
package pyparse

import (
	"bufio"
	"regexp"
	"strings"
)

// Signature describes the ports implied by a block of Python source
type Signature struct {
	Name    string   `json:"name"`    // Declared function name, empty if no header was found
	Inputs  []string `json:"inputs"`  // Formal parameter names in declaration order
	Outputs []string `json:"outputs"` // Items of the widest return statement, verbatim
}

var (
	defName = regexp.MustCompile(`def\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	returns = regexp.MustCompile(`^return\s+(.+)`)
)

// receiverParams are conventional first parameters that never become ports
var receiverParams = map[string]bool{
	"self": true,
	"cls":  true,
}

// ParseFunction returns the parameters and outputs of the first function
// defined in code. It never fails: source without a function header yields
// an empty signature.
func ParseFunction(code string) Signature {
	sig := Signature{
		Inputs:  []string{},
		Outputs: []string{},
	}

	name, params, ok := findHeader(code)
	if !ok {
		return sig
	}
	sig.Name = name
	sig.Inputs = parseParams(params)
	sig.Outputs = parseReturns(code)
	return sig
}

// FunctionName returns the name of the first def found on any line of code.
// Unlike ParseFunction it only needs the opening of the header.
func FunctionName(code string) (string, bool) {
	m := defName.FindStringSubmatch(code)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// findHeader locates the first complete `def name(params):` header.
// The parameter list may contain nested brackets and may span lines.
func findHeader(code string) (name, params string, ok bool) {
	offset := 0
	for offset < len(code) {
		loc := defName.FindStringSubmatchIndex(code[offset:])
		if loc == nil {
			return "", "", false
		}
		name = code[offset+loc[2] : offset+loc[3]]
		open := offset + loc[1] - 1 // index of '('

		end := matchingParen(code, open)
		if end < 0 {
			return "", "", false
		}

		if headerTerminates(code[end+1:]) {
			return name, code[open+1 : end], true
		}
		offset = offset + loc[1]
	}
	return "", "", false
}

// matchingParen returns the index of the bracket closing the one at open,
// or -1 when the source ends first
func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// headerTerminates reports whether the text after a parameter list closes a
// def header, optionally through a return annotation
func headerTerminates(rest string) bool {
	line := rest
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, ":") ||
		(strings.HasPrefix(line, "->") && strings.Contains(line, ":"))
}

func parseParams(params string) []string {
	inputs := []string{}
	if strings.TrimSpace(params) == "" {
		return inputs
	}

	for _, param := range SplitTopLevel(params) {
		name := param
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)
		if name == "" || receiverParams[name] {
			continue
		}
		inputs = append(inputs, name)
	}
	return inputs
}

// parseReturns scans every return statement and keeps the items of the one
// with the most values. Ties keep the first.
func parseReturns(code string) []string {
	best := []string{}

	scanner := bufio.NewScanner(strings.NewReader(code))
	scanner.Buffer(make([]byte, 0, 64*1024), max(64*1024, len(code)+1))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isCommentOrDocstring(line) {
			continue
		}

		m := returns.FindStringSubmatch(line)
		if m == nil {
			// covers the bare `return`
			continue
		}

		expr := strings.TrimSpace(stripComment(m[1]))
		if expr == "" || strings.EqualFold(expr, "none") {
			continue
		}

		items := splitItems(expr)
		if len(items) > len(best) {
			best = items
		}
	}
	return best
}

func isCommentOrDocstring(line string) bool {
	return strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, `"""`) ||
		strings.HasPrefix(line, "'''")
}

func splitItems(expr string) []string {
	var items []string
	for _, item := range SplitTopLevel(expr) {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// SplitTopLevel splits s on commas that are not nested inside (), [] or {}
// and not inside string literals. Parts are returned untrimmed.
func SplitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComment drops a trailing `# ...` comment that is outside string literals
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '#':
			return s[:i]
		}
	}
	return s
}

// IsImportLine reports whether a source line is an import statement
func IsImportLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
}
