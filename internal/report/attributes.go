package report

import (
	"time"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/bench"
)

// Attribute names exposed to threshold expressions.
const (
	AttrBackend      = "backend"
	AttrWriteOneMS   = "write_one_ms"
	AttrWriteManyMS  = "write_many_ms"
	AttrWriteManyRPS = "write_many_rps"
	AttrReadOneMS    = "read_one_ms"
	AttrReadsP50MS   = "reads_p50_ms"
	AttrReadsP95MS   = "reads_p95_ms"
	AttrReadsP99MS   = "reads_p99_ms"
	AttrReadsRPS     = "reads_rps"
	AttrReadsErrors  = "reads_errors"
	AttrFailed       = "failed"
)

// Attributes flattens a run into scalar values. Durations are float
// milliseconds, reads_errors is an int64 and phases that did not run are
// zero.
func Attributes(run *bench.RunResult) map[string]any {
	attrs := map[string]any{
		AttrBackend:      run.Backend,
		AttrWriteOneMS:   0.0,
		AttrWriteManyMS:  0.0,
		AttrWriteManyRPS: 0.0,
		AttrReadOneMS:    0.0,
		AttrReadsP50MS:   0.0,
		AttrReadsP95MS:   0.0,
		AttrReadsP99MS:   0.0,
		AttrReadsRPS:     0.0,
		AttrReadsErrors:  int64(0),
		AttrFailed:       run.Failed(),
	}

	if m, ok := run.Measurement(backend.PhaseWriteOne); ok {
		attrs[AttrWriteOneMS] = Millis(m.Duration)
	}
	if m, ok := run.Measurement(backend.PhaseWriteMany); ok {
		attrs[AttrWriteManyMS] = Millis(m.Duration)
		attrs[AttrWriteManyRPS] = perSecond(m.Records, m.Duration)
	}
	if m, ok := run.Measurement(backend.PhaseReadOne); ok {
		attrs[AttrReadOneMS] = Millis(m.Duration)
	}
	if s := run.Reads; s != nil {
		attrs[AttrReadsP50MS] = Millis(s.Quantile(50))
		attrs[AttrReadsP95MS] = Millis(s.Quantile(95))
		attrs[AttrReadsP99MS] = Millis(s.Quantile(99))
		attrs[AttrReadsRPS] = s.RPS
		attrs[AttrReadsErrors] = int64(s.Errors)
	}
	return attrs
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func perSecond(n int, d time.Duration) float64 {
	if n == 0 || d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
