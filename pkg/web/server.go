package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/harness"
	"github.com/ritzau/flowc/pkg/logging"
	"github.com/ritzau/flowc/pkg/model"
	"github.com/ritzau/flowc/pkg/pubsub"
	"github.com/ritzau/flowc/pkg/pyparse"
	"github.com/ritzau/flowc/pkg/templates"
)

//go:embed static/*
var staticFiles embed.FS

// maxBodySize bounds request bodies; flows embed file previews
const maxBodySize = 32 << 20

// DefaultHost keeps the server, which can run arbitrary code, off the network
const DefaultHost = "127.0.0.1"

// CompileResponse is returned by the compile endpoint
type CompileResponse struct {
	Script      string                `json:"script"`
	Imports     []string              `json:"imports"`
	Order       []string              `json:"order"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics"`
	Packages    []string              `json:"packages"`
	Issues      []model.Issue         `json:"issues"`
	GeneratedAt string                `json:"generatedAt"`
}

// RunResponse is returned by the run endpoint
type RunResponse struct {
	CompileResponse
	Run   *harness.RunResult `json:"run,omitempty"`
	Error string             `json:"error,omitempty"`
}

// ParseRequest is the body of the parse endpoint
type ParseRequest struct {
	Code string `json:"code"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	catalog   *templates.Catalog
	harness   *harness.Runner // nil disables /api/run
	clock     func() time.Time
	host      string

	mu     sync.RWMutex
	latest *pubsub.Compilation
}

// Option customises a Server
type Option func(*Server)

// WithHarness enables script execution through /api/run
func WithHarness(h *harness.Runner) Option {
	return func(s *Server) {
		s.harness = h
	}
}

// WithHost sets the interface Start listens on
func WithHost(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithClock sets the clock used for script headers
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.clock = now
	}
}

// NewServer creates a new web server
func NewServer(catalog *templates.Catalog, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		publisher: pubsub.NewFlowPublisher(),
		catalog:   catalog,
		clock:     time.Now,
		host:      DefaultHost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Publish forwards an event to subscribers and remembers the latest
// compilation for polling clients
func (s *Server) Publish(topic string, eventType string, data interface{}) error {
	if c, ok := data.(pubsub.Compilation); ok && topic == pubsub.TopicCompilation {
		s.mu.Lock()
		s.latest = &c
		s.mu.Unlock()
	}
	return s.publisher.Publish(topic, eventType, data)
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends all subscriptions
func (s *Server) Close() error {
	return s.publisher.Close()
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)
	s.router.Use(sameOrigin)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	// API routes
	s.router.HandleFunc("/api/compile", s.handleCompile).Methods("POST")
	s.router.HandleFunc("/api/run", s.handleRun).Methods("POST")
	s.router.HandleFunc("/api/parse", s.handleParse).Methods("POST")
	s.router.HandleFunc("/api/compilation", s.handleLatest).Methods("GET")
	s.router.HandleFunc("/api/templates", s.handleTemplates).Methods("GET")
	s.router.HandleFunc("/api/templates/{name}", s.handleTemplate).Methods("GET")

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("embedded static files missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicCompilation && topic != pubsub.TopicRun {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// sameOrigin rejects requests a browser sends on behalf of another site.
// Requests without an Origin header come from non-browser clients.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				logging.WarnContext(r.Context(), "cross-origin request rejected", "origin", origin)
				writeError(w, http.StatusForbidden, fmt.Errorf("cross-origin request from %q", origin))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireJSON rejects bodies that are not declared as JSON. Browsers
// cannot send application/json across origins without a preflight.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, errors.New("request body must be application/json"))
		return false
	}
	return true
}

// decodeFlow reads a flow from the request body. Only undecodable input is
// an error; structurally broken flows still compile.
func decodeFlow(w http.ResponseWriter, r *http.Request) (*model.Flow, bool) {
	if !requireJSON(w, r) {
		return nil, false
	}
	var flow model.Flow
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&flow); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid flow: %w", err))
		return nil, false
	}
	return &flow, true
}

func (s *Server) compile(r *http.Request, flow *model.Flow) (*compiler.Result, CompileResponse) {
	result, err := compiler.CompileSafe(flow,
		compiler.WithClock(s.clock),
		compiler.WithLogger(logging.New("compiler").With("requestID", logging.GetRequestID(r.Context()))))
	if err != nil {
		logging.ErrorContext(r.Context(), "compiler failed", "flow", flow.ID, "error", err)
	}

	packages := harness.PackagesFromImports(result.Imports)
	compilation := pubsub.NewCompilation("", flow, result, packages)
	if err != nil {
		compilation.Error = err.Error()
	}
	if err := s.Publish(pubsub.TopicCompilation, pubsub.EventCompiled, compilation); err != nil {
		logging.WarnContext(r.Context(), "failed to publish compilation", "error", err)
	}

	return result, CompileResponse{
		Script:      result.Script,
		Imports:     result.Imports,
		Order:       result.Order,
		Diagnostics: compilation.Diagnostics,
		Packages:    compilation.Packages,
		Issues:      nonNilIssues(compilation.Issues),
		GeneratedAt: result.GeneratedAt,
	}
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	flow, ok := decodeFlow(w, r)
	if !ok {
		return
	}
	_, resp := s.compile(r, flow)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.harness == nil {
		writeError(w, http.StatusNotImplemented, errors.New("script execution is disabled"))
		return
	}
	flow, ok := decodeFlow(w, r)
	if !ok {
		return
	}

	result, compiled := s.compile(r, flow)
	resp := RunResponse{CompileResponse: compiled}

	_ = s.publisher.Publish(pubsub.TopicRun, pubsub.EventRunning, map[string]string{"flowId": flow.ID})
	run, err := s.harness.Run(r.Context(), result)
	resp.Run = run
	if err != nil {
		resp.Error = err.Error()
		_ = s.publisher.Publish(pubsub.TopicRun, pubsub.EventFailed, map[string]string{"flowId": flow.ID, "error": err.Error()})
	} else {
		_ = s.publisher.Publish(pubsub.TopicRun, pubsub.EventFinished, run)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req ParseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, pyparse.ParseFunction(req.Code))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, []*templates.Template{})
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.All())
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotFound, templates.ErrUnknownTemplate)
		return
	}
	name := mux.Vars(r)["name"]
	t, err := s.catalog.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	requires, err := s.catalog.Requires(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*templates.Template
		Closure []string `json:"closure"`
	}{t, requires})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func nonNilIssues(issues []model.Issue) []model.Issue {
	if issues == nil {
		return []model.Issue{}
	}
	return issues
}

// Start serves on the configured host and the given port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// SSE handlers end when their subscriptions close
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("starting web server", "url", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
