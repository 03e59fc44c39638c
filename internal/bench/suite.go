package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
	"github.com/gezibash/dbbench/internal/observability"
)

// OpenFunc opens a backend by name.
type OpenFunc func(ctx context.Context, name string, cfg backend.Config, metrics *observability.Metrics) (backend.Backend, error)

// Suite runs several backends one after another with a shared Runner.
type Suite struct {
	Runner  *Runner
	Configs map[string]backend.Config
	// Open defaults to backend.New.
	Open OpenFunc
}

// Run opens, benchmarks and closes each named backend in order. Unless
// ContinueOnError is set the first failure stops the suite; the partial
// result is returned with the error.
func (s *Suite) Run(ctx context.Context, names []string, ds dataset.Dataset, maxSubfields int) (*SuiteResult, error) {
	open := s.Open
	if open == nil {
		open = backend.New
	}
	opts := s.Runner.Options()
	result := &SuiteResult{
		Dataset: DatasetInfo{Size: len(ds), MaxSubfields: maxSubfields},
		Options: opts,
		Started: time.Now(),
	}
	defer func() { result.Finished = time.Now() }()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		run := s.runOne(ctx, open, name, ds)
		result.Runs = append(result.Runs, run)
		if run.Err == nil {
			continue
		}
		if !opts.ContinueOnError {
			return result, fmt.Errorf("%s: %w", name, run.Err)
		}
		slog.WarnContext(ctx, "continuing after backend failure", "backend", name, "error", run.Err)
	}
	return result, nil
}

func (s *Suite) runOne(ctx context.Context, open OpenFunc, name string, ds dataset.Dataset) RunResult {
	be, err := open(ctx, name, s.Configs[name], s.Runner.metrics)
	if err != nil {
		now := time.Now()
		return RunResult{Backend: name, Err: fmt.Errorf("open: %w", err), Started: now, Finished: now}
	}
	run := s.Runner.Run(ctx, name, be, ds)
	if err := be.Close(); err != nil {
		slog.WarnContext(ctx, "backend close failed", "backend", name, "error", err)
	}
	return run
}
