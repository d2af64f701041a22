package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with an id, taken from the
// X-Request-ID header when the client sent one, and logs its outcome
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		DebugContext(ctx, "request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remoteAddr", r.RemoteAddr,
		)

		next.ServeHTTP(wrapped, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"bytes", wrapped.written,
			"durationMs", time.Since(start).Milliseconds(),
		}
		switch {
		case wrapped.statusCode >= 500:
			ErrorContext(ctx, "request failed", args...)
		case wrapped.statusCode >= 400:
			WarnContext(ctx, "request rejected", args...)
		default:
			InfoContext(ctx, "request completed", args...)
		}
	})
}

// responseWriter records the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
