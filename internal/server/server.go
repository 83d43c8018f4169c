package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// API is the signed upstream the proxy forwards to. *okx.Client
// implements it.
type API interface {
	CallEndpoint(ctx context.Context, name string, query url.Values) (json.RawMessage, error)
	RawTransactions(ctx context.Context, address, chainID string, limit int) (json.RawMessage, error)
	RawBalances(ctx context.Context, address, chainID string) (json.RawMessage, error)
	Configured() bool
}

// Options configure a Server.
type Options struct {
	Logger *zerolog.Logger
	// Registry receives the proxy metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the inbound HTTP proxy in front of the signed OKX client.
type Server struct {
	api      API
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	handler  http.Handler
}

// New builds the proxy and its routes.
func New(api API, opts Options) *Server {
	s := &Server{
		api:      api,
		logger:   zerolog.Nop(),
		registry: opts.Registry,
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "server").Logger()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = NewMetrics(s.registry)

	mux := http.NewServeMux()
	mux.Handle("GET /api/endpoint", s.instrument("/api/endpoint", http.HandlerFunc(s.handleEndpoint)))
	mux.Handle("GET /api/transactions", s.instrument("/api/transactions", http.HandlerFunc(s.handleTransactions)))
	mux.Handle("GET /api/balances", s.instrument("/api/balances", http.HandlerFunc(s.handleBalances)))
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.handler = s.withRequestID(mux)

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the proxy collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Bool("okx_configured", s.api.Configured()).Msg("proxy listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("proxy stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
