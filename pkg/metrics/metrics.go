// Package metrics exposes the service's Prometheus collectors and the
// /metrics HTTP endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "score_stats"

// Collector records workflow and transport signals in Prometheus.
type Collector struct {
	registry *prometheus.Registry

	droppedValues      *prometheus.CounterVec
	gatewayFailures    *prometheus.CounterVec
	degradedSubmission prometheus.Counter
	analysisOutcomes   *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
}

// NewCollector registers every collector in a fresh registry, together with
// the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		droppedValues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_values_total",
				Help:      "Dataset values that matched no histogram bucket.",
			},
			[]string{"kind"},
		),
		gatewayFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_failures_total",
				Help:      "Failed persistence gateway calls by operation.",
			},
			[]string{"operation"},
		),
		degradedSubmission: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_submissions_total",
				Help:      "Submissions recorded only in the session's local dataset.",
			},
		),
		analysisOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_outcomes_total",
				Help:      "Analysis requests by outcome.",
			},
			[]string{"outcome"},
		),
		requestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grpc_request_duration_seconds",
				Help:      "Latency of unary gRPC requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}
}

// Registry returns the registry the collectors live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) DroppedValues(kind string, n int) {
	c.droppedValues.WithLabelValues(kind).Add(float64(n))
}

func (c *Collector) GatewayFailure(op string) {
	c.gatewayFailures.WithLabelValues(op).Inc()
}

func (c *Collector) DegradedSubmission() {
	c.degradedSubmission.Inc()
}

func (c *Collector) AnalysisOutcome(outcome string) {
	c.analysisOutcomes.WithLabelValues(outcome).Inc()
}

// UnaryServerInterceptor observes request latency per method and status code.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		c.requestLatency.
			WithLabelValues(info.FullMethod, status.Code(err).String()).
			Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on its own listener.
type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger *zap.Logger
}

// NewServer listens on port; port 0 picks a free port.
func NewServer(c *Collector, port int, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics port %d: %w", port, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	return &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis:    lis,
		logger: logger.Named("metrics-server"),
	}, nil
}

// Start serves in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("metrics server starting", zap.String("addr", s.lis.Addr().String()))
	go func() {
		if err := s.srv.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
