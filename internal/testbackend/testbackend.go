// Package testbackend provides a chaos-capable backend server that honors
// the backend contract the proxy relies on: it attaches pool and release
// identity headers to every response, exposes a lightweight health
// endpoint, and can be told to misbehave through an admin endpoint.
//
// It backs the package tests, the verification harness smoke runs, and
// the `bluegreen backend` development command.
package testbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Chaos modes accepted by the admin endpoint.
const (
	ModeNone  = "none"
	ModeError = "error"
	ModeHang  = "hang"
)

// Server simulates one pool member.
type Server struct {
	pool    string
	release string

	// poolHeader and releaseHeader are the identity header names.
	poolHeader    string
	releaseHeader string

	// hangFor is how long ModeHang sits on a request.
	hangFor time.Duration

	mu   sync.Mutex
	mode string

	requests atomic.Int64
	logger   *slog.Logger
}

// New creates a backend with the given pool and release identity.
func New(pool, release string) *Server {
	return &Server{
		pool:          pool,
		release:       release,
		poolHeader:    "X-Pool",
		releaseHeader: "X-Release",
		hangFor:       5 * time.Second,
		mode:          ModeNone,
		logger:        slog.Default().With("component", "testbackend", "pool", pool),
	}
}

// SetIdentityHeaders overrides the identity header names.
func (s *Server) SetIdentityHeaders(poolHeader, releaseHeader string) {
	s.poolHeader = poolHeader
	s.releaseHeader = releaseHeader
}

// SetHangDuration overrides how long ModeHang stalls each request.
func (s *Server) SetHangDuration(d time.Duration) {
	s.hangFor = d
}

// SetMode switches the chaos mode directly (tests use this; the admin
// endpoint is for external controllers).
func (s *Server) SetMode(mode string) error {
	switch mode {
	case ModeNone, ModeError, ModeHang:
	default:
		return fmt.Errorf("unknown chaos mode %q", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.logger.Info("chaos mode changed", "mode", mode)
	return nil
}

// Mode returns the current chaos mode.
func (s *Server) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Requests returns how many non-admin requests the backend has served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Handler returns the backend's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chaos", s.handleChaos)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleApp)
	return mux
}

// handleChaos is the admin endpoint: POST /chaos with form field "mode".
func (s *Server) handleChaos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.SetMode(r.FormValue("mode")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleHealth serves the lightweight health endpoint. Chaos applies here
// too: a broken backend must look broken to health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.applyChaos(w) {
		return
	}
	s.identify(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleApp serves the general application path.
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if !s.applyChaos(w) {
		return
	}

	s.identify(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"pool":    s.pool,
		"release": s.release,
		"path":    r.URL.Path,
	})
}

// applyChaos enforces the current chaos mode. It returns false when the
// request has already been answered (or deliberately ruined).
func (s *Server) applyChaos(w http.ResponseWriter) bool {
	switch s.Mode() {
	case ModeError:
		s.identify(w)
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return false
	case ModeHang:
		time.Sleep(s.hangFor)
		s.identify(w)
		http.Error(w, "injected hang elapsed", http.StatusInternalServerError)
		return false
	default:
		return true
	}
}

// identify attaches the pool and release identity headers.
func (s *Server) identify(w http.ResponseWriter) {
	w.Header().Set(s.poolHeader, s.pool)
	w.Header().Set(s.releaseHeader, s.release)
}
