// Package metrics exposes Prometheus instruments for the outbox and the
// reconciliation loops. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "clinicsync"

// Metrics holds the session's instruments on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	OutboxDepth    prometheus.Gauge
	OutboxEnqueued prometheus.Counter
	OutboxResults  *prometheus.CounterVec
	SyncPulls      *prometheus.CounterVec
	SyncSkipped    *prometheus.CounterVec
	SyncDuration   *prometheus.HistogramVec
	Notifications  *prometheus.CounterVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		OutboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_depth",
			Help:      "Requests waiting in the offline queue.",
		}),
		OutboxEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_enqueued_total",
			Help:      "Requests appended to the offline queue.",
		}),
		OutboxResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_results_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"outcome"}),
		SyncPulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_pulls_total",
			Help:      "Reconciliation pulls by loop and outcome.",
		}, []string{"loop", "outcome"}),
		SyncSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_skipped_total",
			Help:      "Ticks dropped because the previous pull was still running.",
		}, []string{"loop"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_pull_seconds",
			Help:      "Duration of reconciliation pulls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications derived from merges.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OutboxDepth,
		m.OutboxEnqueued,
		m.OutboxResults,
		m.SyncPulls,
		m.SyncSkipped,
		m.SyncDuration,
		m.Notifications,
	)
	return m
}

func (m *Metrics) SetOutboxDepth(n int) {
	if m == nil {
		return
	}
	m.OutboxDepth.Set(float64(n))
}

func (m *Metrics) IncEnqueued() {
	if m == nil {
		return
	}
	m.OutboxEnqueued.Inc()
}

func (m *Metrics) ObserveResult(outcome string) {
	if m == nil {
		return
	}
	m.OutboxResults.WithLabelValues(outcome).Inc()
}

// ObservePull records one completed pull of loop.
func (m *Metrics) ObservePull(loop, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.SyncPulls.WithLabelValues(loop, outcome).Inc()
	m.SyncDuration.WithLabelValues(loop).Observe(took.Seconds())
}

func (m *Metrics) IncSkipped(loop string) {
	if m == nil {
		return
	}
	m.SyncSkipped.WithLabelValues(loop).Inc()
}

func (m *Metrics) AddNotifications(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Notifications.WithLabelValues(kind).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on a TCP address.
type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger *zap.Logger
}

// Listen binds addr. Serve must be called to accept connections.
func Listen(addr string, m *Metrics, logger *zap.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis:    lis,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() {
	s.logger.Info("metrics server listening", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("metrics server error", zap.Error(err))
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
