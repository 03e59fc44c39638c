package backend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/dbbench/internal/dataset"
	"github.com/gezibash/dbbench/internal/observability"
)

type failingBackend struct {
	stubBackend
	err error
}

func (f *failingBackend) WriteMany(context.Context, []*dataset.Record) error { return f.err }

type recorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *recorder) observe(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recorder) all() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

func TestTimedReportsSamples(t *testing.T) {
	m := observability.NewMetrics()
	rec := &recorder{}
	tb := NewTimed("stub", &stubBackend{}, m, rec.observe)
	ctx := context.Background()

	if err := tb.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tb.WriteMany(ctx, make([]*dataset.Record, 3)); err != nil {
		t.Fatal(err)
	}
	if _, err := tb.ReadOne(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadOne err = %v", err)
	}

	got := rec.all()
	if len(got) != 3 {
		t.Fatalf("samples = %d, want 3", len(got))
	}
	if got[0].Phase != PhaseSetup || got[1].Phase != PhaseWriteMany || got[2].Phase != PhaseReadOne {
		t.Errorf("phases = %v %v %v", got[0].Phase, got[1].Phase, got[2].Phase)
	}
	if got[1].Records != 3 {
		t.Errorf("write_many records = %d", got[1].Records)
	}
	if !errors.Is(got[2].Err, ErrNotFound) {
		t.Errorf("read sample err = %v", got[2].Err)
	}

	if v := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("stub", "write_many")); v != 3 {
		t.Errorf("records_total = %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.OperationTotal.WithLabelValues("stub", "read_one", "error")); v != 1 {
		t.Errorf("read_one error total = %v, want 1", v)
	}
}

func TestTimedPhaseFromContext(t *testing.T) {
	m := observability.NewMetrics()
	rec := &recorder{}
	tb := NewTimed("stub", &stubBackend{}, m, rec.observe)

	ctx := WithPhase(context.Background(), PhaseConcurrentReads)
	for range 4 {
		_, _ = tb.ReadOne(ctx, uuid.New())
	}
	for _, s := range rec.all() {
		if s.Phase != PhaseConcurrentReads {
			t.Fatalf("phase = %v, want concurrent_reads", s.Phase)
		}
	}
	if n := testutil.CollectAndCount(m.ReadLatency); n != 1 {
		t.Errorf("read latency series = %d, want 1", n)
	}
}

func TestTimedPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	tb := NewTimed("stub", &failingBackend{err: boom}, nil, nil)
	if err := tb.WriteMany(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if tb.Name() != "stub" {
		t.Fatalf("Name = %q", tb.Name())
	}
}
