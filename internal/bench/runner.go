package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
	"github.com/gezibash/dbbench/internal/latency"
	"github.com/gezibash/dbbench/internal/observability"
)

// cleanTimeout bounds Clean when the run context is already cancelled.
const cleanTimeout = 30 * time.Second

// Runner executes the lifecycle against a single backend.
type Runner struct {
	opts     Options
	seed     int64
	metrics  *observability.Metrics
	progress Progress
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics records every backend call in m.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithProgress reports concurrent read progress to p.
func WithProgress(p Progress) RunnerOption {
	return func(r *Runner) { r.progress = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. Every backend it runs sees the same split and
// read order.
func NewRunner(opts Options, options ...RunnerOption) *Runner {
	r := &Runner{opts: opts, seed: opts.Seed, logger: slog.Default()}
	if r.seed == 0 {
		r.seed = time.Now().UnixNano()
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Options returns the runner's options.
func (r *Runner) Options() Options { return r.opts }

// Seed returns the seed in use, resolved when Options.Seed was zero.
func (r *Runner) Seed() int64 { return r.seed }

// collector turns Timed samples into measurements and read latencies.
type collector struct {
	mu           sync.Mutex
	measurements []Measurement
	reads        *latency.Recorder
	progress     Progress
}

func (c *collector) observe(s backend.Sample) {
	if s.Phase == backend.PhaseConcurrentReads {
		if errors.Is(s.Err, context.Canceled) {
			return
		}
		c.reads.Add(s.Elapsed, s.Err)
		if c.progress != nil {
			c.progress.Increment()
		}
		return
	}
	c.mu.Lock()
	c.measurements = append(c.measurements, Measurement{
		Phase: s.Phase, Records: s.Records, Duration: s.Elapsed, Err: s.Err,
	})
	c.mu.Unlock()
}

func (c *collector) add(m Measurement) {
	c.mu.Lock()
	c.measurements = append(c.measurements, m)
	c.mu.Unlock()
}

// Run executes setup, write_one, write_many, read_one, concurrent_reads and
// clean in order. A failed phase skips the remaining data phases; clean
// still runs once setup has succeeded. The first error is RunResult.Err.
func (r *Runner) Run(ctx context.Context, name string, be backend.Backend, ds dataset.Dataset) (res RunResult) {
	res = RunResult{Backend: name, Started: time.Now()}
	logger := r.logger.With("backend", name)

	c := &collector{reads: latency.NewRecorder(r.opts.Reads), progress: r.progress}
	tb := backend.NewTimed(name, be, r.metrics, c.observe)
	defer func() {
		res.Measurements = c.measurements
		res.Finished = time.Now()
	}()

	logger.Info("benchmark started", "records", len(ds))
	if err := tb.Setup(ctx); err != nil {
		res.Err = fmt.Errorf("setup: %w", err)
		logger.Error("benchmark failed", "phase", backend.PhaseSetup, "error", err)
		return res
	}

	err := r.data(ctx, tb, ds, c, &res)

	cleanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanTimeout)
	defer cancel()
	if cerr := tb.Clean(cleanCtx); cerr != nil && err == nil {
		err = fmt.Errorf("%s: %w", backend.PhaseClean, cerr)
	}

	if err != nil {
		res.Err = err
		logger.Error("benchmark failed", "error", err)
		return res
	}
	logger.Info("benchmark finished", "duration", time.Since(res.Started))
	return res
}

func (r *Runner) data(ctx context.Context, tb *backend.Timed, ds dataset.Dataset, c *collector, res *RunResult) error {
	rng := rand.New(rand.NewSource(r.seed))
	one, rest := ds.Split(rng)
	if one == nil {
		return fmt.Errorf("%s: %w: dataset is empty", backend.PhaseWriteOne, dataset.ErrInvalidOptions)
	}

	if err := tb.WriteOne(ctx, one); err != nil {
		return fmt.Errorf("%s: %w", backend.PhaseWriteOne, err)
	}
	if err := tb.WriteMany(ctx, rest); err != nil {
		return fmt.Errorf("%s: %w", backend.PhaseWriteMany, err)
	}

	got, err := tb.ReadOne(ctx, one.UserID)
	if err != nil {
		return fmt.Errorf("%s %s: %w", backend.PhaseReadOne, one.UserID, err)
	}
	if !got.Equal(one) {
		return fmt.Errorf("%s %s: %w", backend.PhaseReadOne, one.UserID, ErrMismatch)
	}

	if r.opts.Reads <= 0 {
		return nil
	}
	ids := ds.SampleIDs(rng, r.opts.Reads)
	stats, err := r.concurrentReads(ctx, tb, ids, c)
	res.Reads = stats
	if err != nil {
		return fmt.Errorf("%s: %w", backend.PhaseConcurrentReads, err)
	}
	return nil
}

// concurrentReads fans ids out over the worker pool. Read failures are
// recorded in the stats; only cancellation stops the phase early.
func (r *Runner) concurrentReads(ctx context.Context, tb *backend.Timed, ids []uuid.UUID, c *collector) (*latency.Stats, error) {
	workers := max(r.opts.Workers, 1)
	if r.progress != nil {
		r.progress.Start(tb.Name(), len(ids))
		defer r.progress.Finish()
	}

	rctx := backend.WithPhase(ctx, backend.PhaseConcurrentReads)
	start := time.Now()

	g, gctx := errgroup.WithContext(rctx)
	work := make(chan uuid.UUID)
	g.Go(func() error {
		defer close(work)
		for _, id := range ids {
			select {
			case work <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for id := range work {
				_, _ = tb.ReadOne(gctx, id)
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)

	results := c.reads.Results()
	stats := latency.Compute(results, elapsed)
	c.add(Measurement{
		Phase:    backend.PhaseConcurrentReads,
		Records:  len(results),
		Duration: elapsed,
		Err:      err,
	})

	r.logger.Debug("concurrent reads finished",
		"backend", tb.Name(), "reads", len(results), "errors", stats.Errors,
		"workers", workers, "duration", elapsed)
	return stats, err
}
