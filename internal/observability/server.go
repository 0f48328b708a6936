// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package observability provides HTTP endpoints for metrics and health
// checks, plus the Prometheus counters/gauges the materializer's report
// stream feeds.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spacewire/sync/internal/materializer"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Metrics contains the process's custom Prometheus metrics: the ambient
// connection/request counters plus the materializer scoreboard.
type Metrics struct {
	ConnectionsTotal *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec

	MaterializerApplied *prometheus.CounterVec
	MaterializerStashed *prometheus.CounterVec
	MaterializerErrored *prometheus.CounterVec
	MailboxDepth        prometheus.Gauge
}

// NewMetrics creates and registers the custom metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacewire_connections_total",
				Help: "Total number of connections by type",
			},
			[]string{"type"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacewire_requests_total",
				Help: "Total number of requests by type and status",
			},
			[]string{"type", "status"},
		),
		MaterializerApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacewire_materializer_applied_total",
				Help: "Total number of events successfully applied by stream",
			},
			[]string{"stream"},
		),
		MaterializerStashed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacewire_materializer_stashed_total",
				Help: "Total number of events stashed pending a dependency by stream",
			},
			[]string{"stream"},
		),
		MaterializerErrored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacewire_materializer_errored_total",
				Help: "Total number of events that failed to apply or validate by stream",
			},
			[]string{"stream"},
		),
		MailboxDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spacewire_mailbox_depth",
				Help: "Batches currently queued in the materializer's mailbox",
			},
		),
	}

	reg.MustRegister(m.ConnectionsTotal)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.MaterializerApplied)
	reg.MustRegister(m.MaterializerStashed)
	reg.MustRegister(m.MaterializerErrored)
	reg.MustRegister(m.MailboxDepth)

	return m
}

// Observe records one materializer report against the applied/stashed/
// errored counters, labeled by stream. The materializer's report channel
// is single-consumer (spec §5), so this is called from within whatever
// loop already drains Reports() rather than from a dedicated reader of
// its own.
func (m *Metrics) Observe(r materializer.Report) {
	stream := string(r.StreamId)
	if n := r.Summary.Applied; n > 0 {
		m.MaterializerApplied.WithLabelValues(stream).Add(float64(n))
	}
	if n := r.Summary.Stashed; n > 0 {
		m.MaterializerStashed.WithLabelValues(stream).Add(float64(n))
	}
	if n := r.Summary.Errored; n > 0 {
		m.MaterializerErrored.WithLabelValues(stream).Add(float64(n))
	}
}

// WatchMaterializer drains reports, calling Observe per batch, until
// reports is closed or ctx is cancelled. Only safe when nothing else is
// draining reports; a caller that already owns the report loop (e.g.
// client.Worker) should call Observe directly from within it instead.
func (m *Metrics) WatchMaterializer(ctx context.Context, reports <-chan materializer.Report) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-reports:
			if !ok {
				return
			}
			m.Observe(r)
		}
	}
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool

	errCh     chan error
	closeOnce sync.Once
}

// NewServer creates a new observability server.
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Register custom metrics
	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints, returning a channel that
// receives at most one error if the server fails after Start returns
// (e.g. the listener dies unexpectedly), then closes. The channel closes
// without a value on a normal Stop-triggered shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.errCh = make(chan error, 1)
	s.closeOnce = sync.Once{}

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := s.errCh
	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			s.closeOnce.Do(func() {
				errCh <- serveErr
				close(errCh)
			})
			return
		}
		s.closeOnce.Do(func() { close(errCh) })
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server. On a context
// timeout with the shutdown incomplete, the running state is restored so
// Stop can be retried.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return fmt.Errorf("failed to shutdown observability server: %w", err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 if the process is running.
// This is a simple check that the process is alive.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n"))
}
