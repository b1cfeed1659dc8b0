package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SnapshotFunc returns a JSON-encodable view of current session state
// Must be safe to call from the HTTP goroutine
type SnapshotFunc func() any

// Routes builds the status router
func Routes(reg *Registry, snapshot SnapshotFunc) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, reg.Snapshot())
	})
	r.Get("/waypoints", func(w http.ResponseWriter, _ *http.Request) {
		if snapshot == nil {
			http.Error(w, "no session", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snapshot())
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Server serves Routes on an address, implementing service.Service
// An empty address disables it
type Server struct {
	addr     string
	registry *Registry
	snapshot SnapshotFunc
	logger   *zap.Logger

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// NewServer creates a status server
func NewServer(addr string, reg *Registry, snapshot SnapshotFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, registry: reg, snapshot: snapshot, logger: logger}
}

func (s *Server) Name() string           { return "status" }
func (s *Server) Dependencies() []string { return nil }
func (s *Server) Init(...any) error      { return nil }

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == "" || s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           Routes(s.registry, s.snapshot),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("status server stopped", zap.Error(err))
		}
	}(s.srv, s.done)

	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, empty when not running
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down; safe to call repeatedly
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.ln = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done
	return err
}
