package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation times one backend call with a span, metrics and debug logging.
type Operation struct {
	ctx     context.Context
	span    trace.Span
	metrics *Metrics
	backend string
	phase   string
	start   time.Time
	logger  *slog.Logger
}

// StartOperation begins timing a call. metrics may be nil.
func StartOperation(ctx context.Context, m *Metrics, backend, phase string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := StartSpan(ctx, backend+"."+phase, attrs...)
	logger := slog.Default().With("backend", backend, "phase", phase)
	logger.DebugContext(ctx, "operation started")

	return &Operation{
		ctx:     ctx,
		span:    span,
		metrics: m,
		backend: backend,
		phase:   phase,
		start:   time.Now(),
		logger:  logger,
	}, ctx
}

// End finishes the operation and returns its wall-clock duration.
func (o *Operation) End(err error) time.Duration {
	elapsed := time.Since(o.start)
	status := "ok"
	if err != nil {
		status = "error"
		o.logger.WarnContext(o.ctx, "operation failed", "error", err, "duration", elapsed)
	} else {
		o.logger.DebugContext(o.ctx, "operation completed", "duration", elapsed)
	}

	EndSpan(o.span, err)
	if o.metrics != nil {
		o.metrics.OperationDuration.WithLabelValues(o.backend, o.phase, status).Observe(elapsed.Seconds())
		o.metrics.OperationTotal.WithLabelValues(o.backend, o.phase, status).Inc()
	}
	return elapsed
}
