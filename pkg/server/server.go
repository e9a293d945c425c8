package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/piwi3910/gpustatsd/pkg/gpustats"
	"github.com/piwi3910/gpustatsd/pkg/telemetry"
)

// Options configures the HTTP API server.
type Options struct {
	// ListenAddress is the address to serve on.
	ListenAddress string

	// Store is the statistics store the API fronts.
	Store *gpustats.Store

	// Logger receives request logs.
	Logger zerolog.Logger

	// Metrics serves the /metrics endpoint and counts API requests.
	Metrics *telemetry.Metrics
}

// Server exposes the statistics store over a local HTTP API: event ingest
// for the driver loading notifier, the dump endpoint for the diagnostics
// harness and the Prometheus exposition endpoint.
type Server struct {
	store   *gpustats.Store
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	httpSrv *http.Server
}

// New creates the API server.
func New(opts Options) *Server {
	s := &Server{
		store:   opts.Store,
		logger:  opts.Logger.With().Str("component", "server").Logger(),
		metrics: opts.Metrics,
	}
	s.httpSrv = &http.Server{
		Addr:              opts.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the API routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stats", s.handleInsert)
	mux.HandleFunc("/api/v1/dump", s.handleDump)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.withRequestLogging(mux)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.httpSrv.Addr).Msg("API server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
