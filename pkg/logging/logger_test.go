package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// captureLogs routes log output to a buffer for the duration of a test
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(slog.LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		verbose  int
		expected slog.Level
		wantErr  bool
	}{
		{"", 0, slog.LevelInfo, false},
		{"", 1, slog.LevelDebug, false},
		{"", 3, LevelTrace, false},
		{"trace", 0, LevelTrace, false},
		{"DEBUG", 0, slog.LevelDebug, false},
		{"warning", 2, slog.LevelWarn, false},
		{"error", 0, slog.LevelError, false},
		{"loud", 0, slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name, tt.verbose)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q, %d) error = %v, wantErr %v", tt.name, tt.verbose, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseLevel(%q, %d) = %v, expected %v", tt.name, tt.verbose, got, tt.expected)
		}
	}
}

func TestCompactHandlerFormat(t *testing.T) {
	buf := captureLogs(t, LevelTrace)

	New("compiler").Info("compiled flow", "nodes", 3, "flow", "my flow")
	Trace("deep detail")
	Error("boom", "error", errors.New("bad thing"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}

	if !strings.HasPrefix(lines[0], "[INFO]") || !strings.Contains(lines[0], "compiled flow | component=compiler nodes=3 flow=\"my flow\"") {
		t.Errorf("Unexpected info line: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[TRACE]") {
		t.Errorf("Unexpected trace line: %s", lines[1])
	}
	if !strings.Contains(lines[2], `error="bad thing"`) {
		t.Errorf("Unexpected error line: %s", lines[2])
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)

	Info("hidden")
	Debug("hidden")
	Warn("shown")

	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestContextRequestID(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	ctx := WithRequestID(context.Background(), "0123456789abcdef")
	if got := GetRequestID(ctx); got != "0123456789abcdef" {
		t.Errorf("Expected the request id back, got %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("Expected no request id, got %q", got)
	}

	InfoContext(ctx, "handled")
	if !strings.Contains(buf.String(), "req=01234567") {
		t.Errorf("Expected a shortened request id, got:\n%s", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/pot", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "client-supplied-id" {
		t.Errorf("Expected the client id in the context, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "client-supplied-id" {
		t.Error("Expected the id echoed in the response")
	}
	out := buf.String()
	if !strings.Contains(out, "request rejected") || !strings.Contains(out, "status=418") || !strings.Contains(out, "bytes=15") {
		t.Errorf("Unexpected log output:\n%s", out)
	}

	// a fresh id is generated when none is sent
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("Expected a generated uuid, got %q", id)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetJSONOutput(slog.LevelInfo)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(slog.LevelInfo)
	})

	Info("structured", "key", "value")
	if !strings.Contains(buf.String(), `"msg":"structured"`) || !strings.Contains(buf.String(), `"key":"value"`) {
		t.Errorf("Expected JSON output, got %s", buf.String())
	}
}

func TestCompactHandlerGroupsAndBoundAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil))

	log.With("flow", "f1").WithGroup("run").Info("done",
		"lines", 2,
		slog.Group("figures", "count", 1, "dir", ""),
		"durationMs", 12)

	line := buf.String()
	for _, want := range []string{
		"[INFO]  ",
		"done | flow=f1 run.lines=2 run.figures.count=1 run.figures.dir=\"\" duration=12ms\n",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}

	buf.Reset()
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be filtered at the default level, got %q", buf.String())
	}
}
