// Package server exposes the scheduler over HTTP. Every request is computed
// independently; recent results are kept in memory so a visualiser can read
// them back by ID.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/ctxlog"
	"github.com/joshharrison/critpath/internal/graph"
)

// DefaultCacheSize bounds how many results GET /schedule/{id} can return.
const DefaultCacheSize = 64

// MaxRequestBytes caps the size of a POST /schedule body.
const MaxRequestBytes = 1 << 20

// Request is the body of POST /schedule. Declarations and Edges may be
// combined; declarations are applied first.
type Request struct {
	Name              string            `json:"name,omitempty"`
	Declarations      []graph.EdgeDecl  `json:"declarations,omitempty"`
	Edges             [][2]string       `json:"edges,omitempty"`
	Durations         cpm.Durations     `json:"durations"`
	Descriptions      map[string]string `json:"descriptions,omitempty"`
	OnMissingDuration string            `json:"on_missing_duration,omitempty"`
	Marker            string            `json:"no_successor_marker,omitempty"`
}

// Response is returned by POST /schedule and GET /schedule/{id}.
type Response struct {
	ID       string         `json:"id"`
	Graph    *Graph         `json:"graph"`
	Schedule *cpm.CPMResult `json:"schedule"`
}

// ErrorResponse describes a rejected schedule request.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind"`
	Activities []string `json:"activities,omitempty"`
}

// Server holds the read-back cache. The zero value is not usable; call New.
type Server struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	results map[string]*Response
	order   []string
	size    int
}

// New creates a server logging to logger (slog.Default when nil).
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger,
		now:     time.Now,
		results: make(map[string]*Response),
		size:    DefaultCacheSize,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /schedule", s.handlePostSchedule)
	mux.HandleFunc("GET /schedule/{id}", s.handleGetSchedule)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logRequests(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctxlog.WithLogger(context.Background(), s.logger) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Schedule computes a schedule for req without touching the cache.
func Schedule(req *Request) (*graph.ProjectGraph, *cpm.CPMResult, error) {
	policy, err := cpm.ParsePolicy(req.OnMissingDuration)
	if err != nil {
		return nil, nil, err
	}

	var opts []graph.Option
	if req.Marker != "" {
		opts = append(opts, graph.WithMarker(req.Marker))
	}
	b := graph.NewBuilder(opts...)
	for _, d := range req.Declarations {
		b.Add(d)
	}
	for _, e := range req.Edges {
		b.AddEdge(e[0], e[1])
	}
	g, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	if g.Len() == 0 {
		return nil, nil, &graph.EmptyGraphError{Declarations: len(req.Declarations) + len(req.Edges)}
	}

	res, err := cpm.Analyze(g, req.Durations, cpm.Options{OnMissingDuration: policy})
	if err != nil {
		return nil, nil, err
	}
	return g, res, nil
}

func (s *Server) handlePostSchedule(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Kind: "too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error(), Kind: "bad_request"})
		return
	}

	g, res, err := Schedule(&req)
	if err != nil {
		status, body := classify(err)
		ctxlog.FromContext(r.Context()).Info("schedule rejected", "kind", body.Kind, "error", err)
		writeJSON(w, status, body)
		return
	}

	id := uuid.NewString()
	resp := &Response{
		ID:       id,
		Graph:    toGraph(id, req.Name, g, res, req.Descriptions, s.now()),
		Schedule: res,
	}
	s.store(resp)

	ctxlog.FromContext(r.Context()).Debug("schedule computed",
		"id", id, "activities", g.Len(), "total_duration", res.TotalDuration)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.RLock()
	resp := s.results[id]
	s.mu.RUnlock()

	if resp == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no schedule with id " + id, Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// store records resp, evicting the oldest entry once the cache is full.
func (s *Server) store(resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.order) >= s.size {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
	s.results[resp.ID] = resp
	s.order = append(s.order, resp.ID)
}

// classify maps a scheduling error to an HTTP status and body.
func classify(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error(), Kind: "invalid_request"}

	var (
		cycle     *graph.CycleError
		token     *graph.InvalidTokenError
		dangling  *graph.DanglingEdgeError
		mismatch  *graph.MismatchedEdgeError
		missing   *cpm.MissingDurationError
		invalid   *cpm.InvalidDurationError
		inconsist *cpm.InconsistentScheduleError
	)
	switch {
	case errors.As(err, &cycle):
		body.Kind, body.Activities = "cycle", cycle.Cycle
	case errors.Is(err, graph.ErrCycle):
		body.Kind = "cycle"
	case errors.Is(err, graph.ErrEmptyGraph):
		body.Kind = "empty_graph"
	case errors.As(err, &token):
		body.Kind = "invalid_token"
	case errors.As(err, &dangling):
		body.Kind, body.Activities = "dangling_edge", []string{dangling.Activity}
	case errors.As(err, &mismatch):
		body.Kind, body.Activities = "mismatched_edge", []string{mismatch.Edge.From, mismatch.Edge.To}
	case errors.As(err, &missing):
		body.Kind, body.Activities = "missing_duration", missing.Activities
	case errors.As(err, &invalid):
		body.Kind, body.Activities = "invalid_duration", []string{invalid.Activity}
	case errors.As(err, &inconsist):
		body.Kind, body.Activities = "inconsistent_schedule", []string{inconsist.Activity}
		return http.StatusInternalServerError, body
	}
	return http.StatusUnprocessableEntity, body
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests attaches the server logger to each request context and logs
// the outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))

		logger.Info("request", "status", rec.status, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Post sends req to a running server at baseURL and returns its response.
func Post(ctx context.Context, baseURL string, req *Request) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/schedule", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST /schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return nil, fmt.Errorf("POST /schedule returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("POST /schedule returned %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
