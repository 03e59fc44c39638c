// Package bench runs the benchmark lifecycle against one or more backends.
package bench

import (
	"errors"
	"time"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/latency"
)

// Defaults for Options.
const (
	DefaultReads   = 1000
	DefaultWorkers = 4
)

// ErrMismatch indicates a record read back differs from the one written.
var ErrMismatch = errors.New("record read back does not match record written")

// Options controls a benchmark run.
type Options struct {
	PageSize int `json:"page_size"`
	// Reads is the number of concurrent-phase reads. Zero skips the phase.
	Reads int `json:"reads"`
	// Workers is the read pool size. One or less reads sequentially.
	Workers int `json:"workers"`
	// Seed fixes the single-write pick and the read order. Zero seeds from
	// the clock once per Runner.
	Seed            int64 `json:"seed"`
	ContinueOnError bool  `json:"continue_on_error"`
}

// Measurement is the outcome of one lifecycle phase.
type Measurement struct {
	Phase    backend.Phase
	Records  int
	Duration time.Duration
	Err      error
}

// RunResult is everything measured for one backend.
type RunResult struct {
	Backend      string
	Measurements []Measurement
	Reads        *latency.Stats
	Err          error
	Started      time.Time
	Finished     time.Time
}

// Measurement returns the measurement for phase p.
func (r *RunResult) Measurement(p backend.Phase) (Measurement, bool) {
	for _, m := range r.Measurements {
		if m.Phase == p {
			return m, true
		}
	}
	return Measurement{}, false
}

// Failed reports whether any phase of the run failed.
func (r *RunResult) Failed() bool {
	return r.Err != nil
}

// DatasetInfo describes the dataset a suite ran with.
type DatasetInfo struct {
	Size         int `json:"size"`
	MaxSubfields int `json:"max_subfields"`
}

// SuiteResult collects the runs of one invocation in execution order.
type SuiteResult struct {
	Dataset  DatasetInfo
	Options  Options
	Runs     []RunResult
	Started  time.Time
	Finished time.Time
}

// Failed returns the runs that did not complete cleanly.
func (s *SuiteResult) Failed() []RunResult {
	var out []RunResult
	for _, r := range s.Runs {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// Progress receives concurrent read progress. Implementations must be safe
// for concurrent Increment calls.
type Progress interface {
	Start(backend string, total int)
	Increment()
	Finish()
}
