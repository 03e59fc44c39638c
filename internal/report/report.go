// Package report renders suite results for people and machines.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/bench"
	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/latency"
)

// ResultType is the meta type of a rendered suite report.
const ResultType = "bench-report"

const (
	barChar   = "∎"
	barWidth  = 40
	wrapWidth = 100
)

// Report renders a bench.SuiteResult through a cli.Output.
type Report struct {
	out        *cli.Output
	meta       cli.Meta
	result     *bench.SuiteResult
	violations map[string][]string
}

// New creates a report for res.
func New(out *cli.Output, res *bench.SuiteResult) *Report {
	return &Report{
		out:        out,
		meta:       cli.NewMeta(ResultType),
		result:     res,
		violations: make(map[string][]string),
	}
}

// AddViolation attaches a failed threshold to a backend's row.
func (r *Report) AddViolation(backendName, msg string) *Report {
	r.violations[backendName] = append(r.violations[backendName], msg)
	return r
}

// Violations returns the number of recorded violations.
func (r *Report) Violations() int {
	n := 0
	for _, v := range r.violations {
		n += len(v)
	}
	return n
}

// Render outputs the report in the configured format.
func (r *Report) Render() error {
	return r.out.Render(r)
}

// Meta returns the report metadata.
func (r *Report) Meta() cli.Meta {
	return r.meta
}

func (r *Report) summary() *cli.Table {
	t := r.out.Table(ResultType,
		"Backend", "Write One", "Write Many", "Write Many/s", "Read One",
		"Reads p50", "Reads p95", "Reads p99", "Reads/s", "Read Errors", "Status").
		Title("Summary").
		AlignRight(1, 2, 3, 4, 5, 6, 7, 8, 9)

	for i := range r.result.Runs {
		run := &r.result.Runs[i]
		a := Attributes(run)
		t.AddRow(
			run.Backend,
			r.phaseCell(run, backend.PhaseWriteOne),
			r.phaseCell(run, backend.PhaseWriteMany),
			formatRate(a[AttrWriteManyRPS].(float64)),
			r.phaseCell(run, backend.PhaseReadOne),
			r.readsCell(run, 50),
			r.readsCell(run, 95),
			r.readsCell(run, 99),
			readsRate(run),
			readsErrors(run),
			cli.Status(!run.Failed() && len(r.violations[run.Backend]) == 0, r.out.Styled()),
		)
	}
	return t
}

func (r *Report) phaseCell(run *bench.RunResult, p backend.Phase) string {
	m, ok := run.Measurement(p)
	switch {
	case !ok:
		return "-"
	case m.Err != nil:
		return "error"
	default:
		return FormatDuration(m.Duration)
	}
}

func (r *Report) readsCell(run *bench.RunResult, p float64) string {
	if run.Reads == nil || len(run.Reads.Percentiles) == 0 {
		return "-"
	}
	return FormatDuration(run.Reads.Quantile(p))
}

func readsRate(run *bench.RunResult) string {
	if run.Reads == nil {
		return "-"
	}
	return formatRate(run.Reads.RPS)
}

func readsErrors(run *bench.RunResult) string {
	if run.Reads == nil {
		return "-"
	}
	return humanize.Comma(int64(run.Reads.Errors))
}

// RenderText writes the header, the summary table and per-backend details.
func (r *Report) RenderText(w io.Writer) error {
	styled := r.out.Styled()
	res := r.result
	header := fmt.Sprintf("dbbench: %s records, up to %d ids per list, %d reads over %d workers",
		humanize.Comma(int64(res.Dataset.Size)), res.Dataset.MaxSubfields, res.Options.Reads, max(res.Options.Workers, 1))
	if _, err := fmt.Fprintf(w, "%s\n%s\n\n", cli.Title(header, styled),
		cli.Subtitle("finished in "+res.Finished.Sub(res.Started).Round(time.Millisecond).String(), styled)); err != nil {
		return err
	}

	if err := r.summary().RenderText(w); err != nil {
		return err
	}

	for i := range res.Runs {
		run := &res.Runs[i]
		if err := r.renderRunText(w, run); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) renderRunText(w io.Writer, run *bench.RunResult) error {
	styled := r.out.Styled()
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", cli.Title(run.Backend, styled))
	if s := run.Reads; s != nil && s.Count > 0 {
		fmt.Fprintf(&b, "\nSummary:\n")
		fmt.Fprintf(&b, "  Total:\t%s\n", FormatDuration(s.Total))
		if len(s.Percentiles) > 0 {
			fmt.Fprintf(&b, "  Slowest:\t%s\n", FormatDuration(s.Slowest))
			fmt.Fprintf(&b, "  Fastest:\t%s\n", FormatDuration(s.Fastest))
			fmt.Fprintf(&b, "  Average:\t%s\n", FormatDuration(s.Average))
		}
		fmt.Fprintf(&b, "  Requests/sec:\t%s\n", formatRate(s.RPS))
		writeHistogram(&b, s)
		writeLatencies(&b, s)
		writeErrors(&b, s)
	}
	if run.Err != nil {
		fmt.Fprintf(&b, "\n%s\n", wordwrap.String(cli.Alert("error: ", styled)+run.Err.Error(), wrapWidth))
	}
	for _, v := range r.violations[run.Backend] {
		fmt.Fprintf(&b, "%s\n", wordwrap.String(cli.Alert("assertion failed: ", styled)+v, wrapWidth))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeHistogram(b *strings.Builder, s *latency.Stats) {
	if len(s.Histogram) == 0 {
		return
	}
	most := 0
	for _, bk := range s.Histogram {
		most = max(most, bk.Count)
	}
	fmt.Fprintf(b, "\nResponse time histogram:\n")
	for _, bk := range s.Histogram {
		barLen := 0
		if most > 0 {
			barLen = bk.Count * barWidth / most
		}
		fmt.Fprintf(b, "  %s [%d]\t|%s\n", FormatDuration(bk.Mark), bk.Count, strings.Repeat(barChar, barLen))
	}
}

func writeLatencies(b *strings.Builder, s *latency.Stats) {
	if len(s.Percentiles) == 0 {
		return
	}
	fmt.Fprintf(b, "\nLatency distribution:\n")
	for _, p := range s.Percentiles {
		fmt.Fprintf(b, "  %v%% in %s\n", p.P, FormatDuration(p.Value))
	}
}

func writeErrors(b *strings.Builder, s *latency.Stats) {
	if len(s.ErrorDist) == 0 {
		return
	}
	fmt.Fprintf(b, "\nError distribution:\n")
	for _, msg := range slices.Sorted(maps.Keys(s.ErrorDist)) {
		fmt.Fprintf(b, "  [%d]\t%s\n", s.ErrorDist[msg], msg)
	}
}

// RenderMarkdown writes the summary table and per-backend latency sections.
func (r *Report) RenderMarkdown(w io.Writer) error {
	res := r.result
	if _, err := fmt.Fprintf(w, "# dbbench results\n\n- **Records:** %s\n- **Max subfields:** %d\n- **Reads:** %d\n- **Workers:** %d\n\n",
		humanize.Comma(int64(res.Dataset.Size)), res.Dataset.MaxSubfields, res.Options.Reads, max(res.Options.Workers, 1)); err != nil {
		return err
	}
	if err := r.summary().RenderMarkdown(w); err != nil {
		return err
	}

	for i := range res.Runs {
		run := &res.Runs[i]
		var b strings.Builder
		fmt.Fprintf(&b, "\n## %s\n", run.Backend)
		if run.Err != nil {
			fmt.Fprintf(&b, "\n> **Error:** %s\n", run.Err)
		}
		for _, v := range r.violations[run.Backend] {
			fmt.Fprintf(&b, "\n> **Assertion failed:** `%s`\n", v)
		}
		if s := run.Reads; s != nil && len(s.Percentiles) > 0 {
			b.WriteString("\n| Percentile | Latency |\n|---:|---:|\n")
			for _, p := range s.Percentiles {
				fmt.Fprintf(&b, "| %v | %s |\n", p.P, FormatDuration(p.Value))
			}
			b.WriteString("\n```\n")
			writeHistogram(&b, s)
			b.WriteString("```\n")
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

type phaseJSON struct {
	Phase      backend.Phase `json:"phase"`
	Records    int           `json:"records"`
	DurationNS time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

type runJSON struct {
	Backend    string         `json:"backend"`
	Failed     bool           `json:"failed"`
	Error      string         `json:"error,omitempty"`
	Phases     []phaseJSON    `json:"phases"`
	Reads      *latency.Stats `json:"reads,omitempty"`
	Attributes map[string]any `json:"attributes"`
	Violations []string       `json:"violations,omitempty"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
}

type suiteJSON struct {
	Dataset  bench.DatasetInfo `json:"dataset"`
	Options  bench.Options     `json:"options"`
	Runs     []runJSON         `json:"runs"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

// RenderJSON returns the full result including raw nanosecond durations.
func (r *Report) RenderJSON() any {
	res := r.result
	out := suiteJSON{
		Dataset:  res.Dataset,
		Options:  res.Options,
		Runs:     make([]runJSON, 0, len(res.Runs)),
		Started:  res.Started,
		Finished: res.Finished,
	}
	for i := range res.Runs {
		run := &res.Runs[i]
		rj := runJSON{
			Backend:    run.Backend,
			Failed:     run.Failed(),
			Phases:     make([]phaseJSON, 0, len(run.Measurements)),
			Reads:      run.Reads,
			Attributes: Attributes(run),
			Violations: r.violations[run.Backend],
			Started:    run.Started,
			Finished:   run.Finished,
		}
		if run.Err != nil {
			rj.Error = run.Err.Error()
		}
		for _, m := range run.Measurements {
			pj := phaseJSON{Phase: m.Phase, Records: m.Records, DurationNS: m.Duration}
			if m.Err != nil {
				pj.Error = m.Err.Error()
			}
			rj.Phases = append(rj.Phases, pj)
		}
		out.Runs = append(out.Runs, rj)
	}
	return out
}

// FormatDuration prints d in milliseconds with three decimals.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", Millis(d))
}

func formatRate(v float64) string {
	if v == 0 {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", v)
}
