package harness

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestParseOutput(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(png)

	stdout := strings.Join([]string{
		"Starting flow execution...",
		"",
		"  ",
		FigurePrefix + encoded,
		"Result: 42",
		FigurePrefix,
		"Flow execution finished.",
	}, "\n")

	out, err := ParseOutput(strings.NewReader(stdout))
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}

	expectedLines := []string{"Starting flow execution...", "Result: 42", "Flow execution finished."}
	if len(out.Lines) != len(expectedLines) {
		t.Fatalf("Expected %d lines, got %d: %v", len(expectedLines), len(out.Lines), out.Lines)
	}
	for i, line := range expectedLines {
		if out.Lines[i] != line {
			t.Errorf("Line %d: expected %q, got %q", i, line, out.Lines[i])
		}
	}

	if len(out.Figures) != 1 {
		t.Fatalf("Expected 1 figure, got %d", len(out.Figures))
	}
	fig := out.Figures[0]
	if fig.Index != 1 {
		t.Errorf("Expected figure index 1, got %d", fig.Index)
	}
	if !bytes.Equal(fig.PNG, png) {
		t.Errorf("Expected decoded PNG %v, got %v", png, fig.PNG)
	}
	if fig.DataURI != "data:image/png;base64,"+encoded {
		t.Errorf("Unexpected data URI: %s", fig.DataURI)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", out.Warnings)
	}
}

func TestParseOutputBadFigure(t *testing.T) {
	stdout := FigurePrefix + "not base64!!\r\nok\r\n"

	out, err := ParseOutput(strings.NewReader(stdout))
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if len(out.Figures) != 0 {
		t.Errorf("Expected no figures, got %d", len(out.Figures))
	}
	if len(out.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", out.Warnings)
	}
	if len(out.Lines) != 2 || out.Lines[1] != "ok" {
		t.Errorf("Expected the bad line kept as text, got %v", out.Lines)
	}
	if out.Text() != FigurePrefix+"not base64!!\nok" {
		t.Errorf("Unexpected text: %q", out.Text())
	}
}

func TestParseOutputLargeFigure(t *testing.T) {
	// a single line larger than the scanner's default buffer
	png := bytes.Repeat([]byte{0xAB}, 200*1024)
	stdout := FigurePrefix + base64.StdEncoding.EncodeToString(png) + "\n"

	out, err := ParseOutput(strings.NewReader(stdout))
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if len(out.Figures) != 1 || len(out.Figures[0].PNG) != len(png) {
		t.Errorf("Expected one figure of %d bytes", len(png))
	}
}

func TestParseOutputEmpty(t *testing.T) {
	out, err := ParseOutput(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if out.Lines == nil || out.Figures == nil {
		t.Error("Expected empty, non-nil slices")
	}
}
