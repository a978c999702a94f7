package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
)

// ServerConfig holds listener settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// ErrorLog receives net/http internal errors; nil uses the standard logger
	ErrorLog *log.Logger
}

// Server runs the webhook HTTP listener
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          interfaces.Logger
}

// NewServer creates a server for handler
func NewServer(config ServerConfig, handler http.Handler, logger interfaces.Logger) *Server {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      config.WriteTimeout,
			ErrorLog:          config.ErrorLog,
		},
		shutdownTimeout: config.ShutdownTimeout,
		logger:          logger,
	}
}

// Run listens on the configured address and serves until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("webhook listener failed: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// listener down gracefully, letting in-flight requests finish
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listener started", interfaces.F("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("webhook listener failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down webhook listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook listener shutdown: %w", err)
	}
	return nil
}
