// Package server runs the optional metrics/health HTTP listener named in
// SPEC_FULL.md §4. It is off by default: devteam is a one-shot CLI, and a
// listener failure must never perturb the exit-code contract in spec.md §6,
// so Start logs and returns rather than propagating bind errors to the
// caller's error path.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the devteam prometheus collectors. No engine code records
// to them, so /metrics serves them at their zero values.
// A zero-value *Metrics is unsafe to use; build one with NewMetrics.
type Metrics struct {
	NodeInvocations *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
	RetryCount      prometheus.Counter
}

// NewMetrics registers the devteam collectors against reg and returns a
// handle to them; cmd/devteam discards that handle.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devteam",
			Name:      "node_invocations_total",
			Help:      "Count of workflow node invocations by node name and outcome.",
		}, []string{"node", "outcome"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "devteam",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of each node invocation.",
		}, []string{"node"}),
		RetryCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devteam",
			Name:      "retry_total",
			Help:      "Count of attempt increments recorded by the retry ledger.",
		}),
	}
	reg.MustRegister(m.NodeInvocations, m.NodeDuration, m.RetryCount)
	return m
}

// Server is the optional /metrics + /healthz listener.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds a Server bound to addr, serving reg's collectors at /metrics
// and a trivial liveness check at /healthz. It does not start listening.
func New(addr string, reg *prometheus.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
	}
}

// Start launches the listener in a background goroutine. Bind failures are
// logged, not returned: a broken metrics listener must not fail the run.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// Shutdown gracefully drains the listener, bounded by timeout.
func (s *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
