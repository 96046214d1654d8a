package metrics

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fly-io/update-agent/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

// Server exposes Handler on Addr until its context ends.
type Server struct {
	Addr string

	// bound is closed once the listener is up; Listener is valid after that.
	bound    chan struct{}
	listener net.Listener
}

// NewServer creates a metrics server for addr.
func NewServer(addr string) *Server {
	return &Server{Addr: addr, bound: make(chan struct{})}
}

// Bound returns a channel closed once the server is listening.
func (s *Server) Bound() <-chan struct{} {
	return s.bound
}

// ListenAddr returns the bound address, or "" before Bound fires.
func (s *Server) ListenAddr() string {
	select {
	case <-s.bound:
		return s.listener.Addr().String()
	default:
		return ""
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.Addr)
	}
	s.listener = ln
	close(s.bound)

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	slog.Info("metrics_server_started", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return errors.Wrap(err, "metrics server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down metrics server")
	}
	slog.Info("metrics_server_stopped")
	return nil
}
