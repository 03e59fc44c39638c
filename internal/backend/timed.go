package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/dbbench/internal/dataset"
	"github.com/gezibash/dbbench/internal/observability"
)

// Phase names one step of the benchmark lifecycle.
type Phase string

const (
	PhaseSetup           Phase = "setup"
	PhaseWriteOne        Phase = "write_one"
	PhaseWriteMany       Phase = "write_many"
	PhaseReadOne         Phase = "read_one"
	PhaseConcurrentReads Phase = "concurrent_reads"
	PhaseClean           Phase = "clean"
)

// Phases lists the lifecycle in execution order.
var Phases = []Phase{PhaseSetup, PhaseWriteOne, PhaseWriteMany, PhaseReadOne, PhaseConcurrentReads, PhaseClean}

type phaseKey struct{}

// WithPhase labels calls made with ctx as belonging to p. Timed uses it to
// tell concurrent reads apart from the single read.
func WithPhase(ctx context.Context, p Phase) context.Context {
	return context.WithValue(ctx, phaseKey{}, p)
}

// PhaseFrom returns the phase stored in ctx, or def.
func PhaseFrom(ctx context.Context, def Phase) Phase {
	if p, ok := ctx.Value(phaseKey{}).(Phase); ok {
		return p
	}
	return def
}

// Sample is one timed backend call.
type Sample struct {
	Backend string
	Phase   Phase
	Records int
	Elapsed time.Duration
	Err     error
}

// Observer receives every Sample. It must be safe for concurrent use.
type Observer func(Sample)

// Timed decorates a Backend so every call is traced, measured and reported.
type Timed struct {
	name    string
	inner   Backend
	metrics *observability.Metrics
	observe Observer
}

var _ Backend = (*Timed)(nil)

// NewTimed wraps inner. metrics and observe may be nil.
func NewTimed(name string, inner Backend, metrics *observability.Metrics, observe Observer) *Timed {
	return &Timed{name: name, inner: inner, metrics: metrics, observe: observe}
}

// Name returns the backend name used for labels.
func (t *Timed) Name() string { return t.name }

func (t *Timed) Setup(ctx context.Context) error {
	return t.track(ctx, PhaseSetup, 0, t.inner.Setup)
}

func (t *Timed) WriteOne(ctx context.Context, rec *dataset.Record) error {
	return t.track(ctx, PhaseWriteOne, 1, func(ctx context.Context) error {
		return t.inner.WriteOne(ctx, rec)
	})
}

func (t *Timed) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	return t.track(ctx, PhaseWriteMany, len(recs), func(ctx context.Context) error {
		return t.inner.WriteMany(ctx, recs)
	})
}

func (t *Timed) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	var rec *dataset.Record
	err := t.track(ctx, PhaseReadOne, 1, func(ctx context.Context) error {
		var err error
		rec, err = t.inner.ReadOne(ctx, id)
		return err
	}, attribute.String("user_id", id.String()))
	return rec, err
}

func (t *Timed) Clean(ctx context.Context) error {
	return t.track(ctx, PhaseClean, 0, t.inner.Clean)
}

func (t *Timed) Close() error {
	return t.inner.Close()
}

func (t *Timed) track(ctx context.Context, def Phase, records int, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	phase := PhaseFrom(ctx, def)
	attrs = append(attrs,
		attribute.String("backend", t.name),
		attribute.String("phase", string(phase)),
		attribute.Int("records", records),
	)

	op, ctx := observability.StartOperation(ctx, t.metrics, t.name, string(phase), attrs...)
	err := fn(ctx)
	elapsed := op.End(err)

	if t.metrics != nil {
		if err == nil && records > 0 {
			t.metrics.RecordsTotal.WithLabelValues(t.name, string(phase)).Add(float64(records))
		}
		if phase == PhaseConcurrentReads && !errors.Is(err, context.Canceled) {
			t.metrics.ReadLatency.WithLabelValues(t.name).Observe(elapsed.Seconds())
		}
	}
	if t.observe != nil {
		t.observe(Sample{Backend: t.name, Phase: phase, Records: records, Elapsed: elapsed, Err: err})
	}
	return err
}
