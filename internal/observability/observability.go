// Package observability wires logging, Prometheus metrics and OpenTelemetry
// tracing for a benchmark run.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config is the subset of the run configuration observability needs.
type Config struct {
	LogLevel       string
	LogFormat      string
	Color          bool
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
}

// Observability holds the components shared by one process.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
	Shutdown       *ShutdownCoordinator
}

// New initializes logging, metrics and, when an endpoint is configured, tracing.
// Logs go to w.
func New(ctx context.Context, cfg Config, w io.Writer) (*Observability, error) {
	shutdown := &ShutdownCoordinator{}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, cfg.Color, w)

	var tp trace.TracerProvider = tracenoop.NewTracerProvider()
	if cfg.OTLPEndpoint != "" {
		sdkTP, err := InitTracer(ctx, TracerConfig{
			Endpoint:       cfg.OTLPEndpoint,
			Protocol:       cfg.OTLPProtocol,
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		tp = sdkTP
		shutdown.Register("tracer", sdkTP.Shutdown)
		logger.Debug("tracing enabled", "endpoint", cfg.OTLPEndpoint, "protocol", cfg.OTLPProtocol)
	}

	return &Observability{
		Logger:         logger,
		Metrics:        NewMetrics(),
		TracerProvider: tp,
		Shutdown:       shutdown,
	}, nil
}

// Close flushes traces and runs shutdown handlers.
func (o *Observability) Close(ctx context.Context) error {
	return o.Shutdown.Shutdown(ctx)
}

// ServeMetrics exposes /metrics and /health on addr until shutdown.
// It returns once the listener is bound so scrapes during the run succeed.
func (o *Observability) ServeMetrics(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics server listening", "addr", lis.Addr().String())

	o.Shutdown.Register("metrics-server", srv.Shutdown)
	return lis.Addr(), nil
}
