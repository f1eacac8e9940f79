// Package server provides the smelly HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/rules"
	"github.com/jmylchreest/smelly/pkg/scanner"
	"github.com/jmylchreest/smelly/pkg/source"
	"github.com/jmylchreest/smelly/pkg/store"
)

var httpLog = log.New(os.Stderr, "[smelly:http] ", log.Ltime)

// MaxRequestBodySize limits request body size to 1MB.
const MaxRequestBodySize = 1 << 20 // 1MB

// DefaultScanPath names a text blob posted without a path.
const DefaultScanPath = "input"

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Path     string `json:"path,omitempty"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

// Server provides the HTTP API.
type Server struct {
	scanner *scanner.Scanner
	store   store.FindingsStore
	addr    string
	mux     *http.ServeMux
}

// NewServer creates a server. st may be nil, in which case the findings
// endpoint answers 501.
func NewServer(sc *scanner.Scanner, st store.FindingsStore, addr string) *Server {
	s := &Server{
		scanner: sc,
		store:   st,
		addr:    addr,
		mux:     http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/rules", s.handleRules)
	s.mux.HandleFunc("/api/findings", s.handleFindings)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Handler returns the API's request handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		httpLog.Printf("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		httpLog.Printf("failed to encode response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "invalid JSON or request too large", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		req.Path = DefaultScanPath
	}
	if req.Language != "" {
		req.Language = strings.ToLower(req.Language)
		if !slices.Contains(source.Languages(), req.Language) {
			errorResponse(w, fmt.Sprintf("unsupported language %q (want one of %s)", req.Language, strings.Join(source.Languages(), ", ")), http.StatusBadRequest)
			return
		}
	}

	jsonResponse(w, s.scanner.ScanText(req.Path, req.Language, req.Text), http.StatusOK)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, rules.Describe(s.scanner.Engine().Rules()), http.StatusOK)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		errorResponse(w, "findings store not configured", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	opts := findings.SearchOptions{
		Rule:            q.Get("rule"),
		FilePath:        q.Get("file"),
		IncludeAccepted: q.Get("accepted") == "true",
	}
	if sev := q.Get("severity"); sev != "" {
		parsed, err := findings.ParseSeverity(sev)
		if err != nil {
			errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Severity = parsed
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			errorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	var (
		result interface{}
		err    error
	)
	if query := q.Get("q"); query != "" {
		var rs []*findings.SearchResult
		rs, err = s.store.Search(query, opts)
		if rs == nil {
			rs = []*findings.SearchResult{}
		}
		result = rs
	} else {
		var ff []*findings.Finding
		ff, err = s.store.List(opts)
		if ff == nil {
			ff = []*findings.Finding{}
		}
		result = ff
	}
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, result, http.StatusOK)
}
