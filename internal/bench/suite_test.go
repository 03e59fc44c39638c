package bench

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
	"github.com/gezibash/dbbench/internal/observability"
)

type openStub struct {
	fakes  map[string]*fake
	opened []string
}

func (o *openStub) open(_ context.Context, name string, _ backend.Config, _ *observability.Metrics) (backend.Backend, error) {
	o.opened = append(o.opened, name)
	f, ok := o.fakes[name]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return f, nil
}

func failing(p backend.Phase) *fake {
	f := newFake()
	f.failAt = p
	return f
}

func newStub() *openStub {
	return &openStub{fakes: map[string]*fake{
		"a":      newFake(),
		"broken": failing(backend.PhaseWriteMany),
		"c":      newFake(),
	}}
}

func TestSuiteStopsOnFirstFailure(t *testing.T) {
	stub := newStub()
	s := &Suite{Runner: NewRunner(Options{Reads: 5, Seed: 1}), Open: stub.open}

	res, err := s.Run(context.Background(), []string{"a", "broken", "c"}, backendtest.Dataset(t, 10, 1), 1)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if len(res.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(res.Runs))
	}
	if len(stub.opened) != 2 {
		t.Errorf("opened %v, want a and broken only", stub.opened)
	}
	if failed := res.Failed(); len(failed) != 1 || failed[0].Backend != "broken" {
		t.Errorf("failed = %v", failed)
	}
}

func TestSuiteContinueOnError(t *testing.T) {
	stub := newStub()
	s := &Suite{Runner: NewRunner(Options{Reads: 5, Seed: 1, ContinueOnError: true}), Open: stub.open}

	res, err := s.Run(context.Background(), []string{"a", "broken", "missing", "c"}, backendtest.Dataset(t, 10, 1), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Runs) != 4 {
		t.Fatalf("runs = %d, want 4", len(res.Runs))
	}
	for i, want := range []string{"a", "broken", "missing", "c"} {
		if res.Runs[i].Backend != want {
			t.Errorf("run %d = %s, want %s", i, res.Runs[i].Backend, want)
		}
	}
	if got := len(res.Failed()); got != 2 {
		t.Errorf("failed = %d, want 2", got)
	}
	if res.Runs[2].Err == nil || len(res.Runs[2].Measurements) != 0 {
		t.Errorf("open failure run = %+v", res.Runs[2])
	}
	if res.Dataset.Size != 10 || res.Dataset.MaxSubfields != 1 {
		t.Errorf("dataset info = %+v", res.Dataset)
	}
}

func TestSuiteClosesBackends(t *testing.T) {
	stub := newStub()
	s := &Suite{Runner: NewRunner(Options{Seed: 1}), Open: stub.open}
	if _, err := s.Run(context.Background(), []string{"a"}, backendtest.Dataset(t, 3, 1), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := stub.fakes["a"].ReadOne(context.Background(), backendtest.Dataset(t, 1, 0)[0].UserID); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("ReadOne after suite = %v, want ErrClosed", err)
	}
}

func TestSuiteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := newStub()
	s := &Suite{Runner: NewRunner(Options{Seed: 1}), Open: stub.open}
	res, err := s.Run(ctx, []string{"a", "c"}, backendtest.Dataset(t, 3, 1), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Runs) != 0 {
		t.Errorf("runs = %d, want 0", len(res.Runs))
	}
}

func TestSuiteDefaultOpen(t *testing.T) {
	s := &Suite{Runner: NewRunner(Options{Reads: 3, Seed: 1})}
	res, err := s.Run(context.Background(), []string{"memory"}, backendtest.Dataset(t, 5, 1), 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Runs[0].Failed() {
		t.Errorf("memory run failed: %v", res.Runs[0].Err)
	}
}
