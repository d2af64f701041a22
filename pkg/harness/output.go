// Package harness runs generated scripts and interprets what they print.
package harness

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/ritzau/flowc/pkg/compiler"
)

// FigurePrefix marks a stdout line whose remainder is a base64 PNG
const FigurePrefix = compiler.FigurePrefix

// maxLineSize bounds a single stdout line; figure lines carry whole images
const maxLineSize = 64 * 1024 * 1024

// Figure is an image emitted by an output node
type Figure struct {
	Index   int    `json:"index"`
	PNG     []byte `json:"-"`
	DataURI string `json:"dataUri"`
}

// Output is the interpreted stdout of a script run
type Output struct {
	Lines    []string `json:"lines"`
	Figures  []Figure `json:"figures"`
	Warnings []string `json:"warnings,omitempty"`
}

// Text returns the text lines joined by newlines
func (o *Output) Text() string {
	return strings.Join(o.Lines, "\n")
}

// ParseOutput splits script stdout into text and figures. Blank lines are
// dropped. A figure line with an empty payload is ignored; one that does not
// decode is kept as text and reported as a warning.
func ParseOutput(r io.Reader) (*Output, error) {
	out := &Output{
		Lines:   []string{},
		Figures: []Figure{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		payload, isFigure := strings.CutPrefix(line, FigurePrefix)
		if !isFigure {
			if strings.TrimSpace(line) != "" {
				out.Lines = append(out.Lines, line)
			}
			continue
		}

		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		png, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("figure %d: %v", len(out.Figures)+1, err))
			out.Lines = append(out.Lines, line)
			continue
		}
		out.Figures = append(out.Figures, Figure{
			Index:   len(out.Figures) + 1,
			PNG:     png,
			DataURI: "data:image/png;base64," + payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("reading script output: %w", err)
	}

	return out, nil
}
