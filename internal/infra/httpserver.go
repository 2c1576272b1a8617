package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer runs the API until its context ends.
type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		// Downloads and websocket streams set their own deadlines.
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
	timeout := cfg.HTTPIdleTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPServer{server: srv, shutdownTimeout: timeout}
}

func (s *HTTPServer) Addr() string { return s.server.Addr }

// Run serves until ctx is done, then drains in-flight requests for at most
// the shutdown timeout. A clean shutdown returns nil.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
