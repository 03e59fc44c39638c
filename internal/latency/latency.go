// Package latency summarizes per-request latency samples: extremes, average,
// throughput, nearest-rank percentiles, a histogram and an error distribution.
package latency

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Percentiles reported by Compute.
var Percentiles = []float64{10, 25, 50, 75, 90, 95, 99}

// HistogramBuckets is the number of histogram buckets.
const HistogramBuckets = 10

// Result is one request outcome.
type Result struct {
	Duration time.Duration
	Err      error
}

// Recorder collects results from concurrent workers.
type Recorder struct {
	mu      sync.Mutex
	results []Result
}

// NewRecorder preallocates room for n results.
func NewRecorder(n int) *Recorder {
	return &Recorder{results: make([]Result, 0, max(n, 0))}
}

// Add records one result.
func (r *Recorder) Add(d time.Duration, err error) {
	r.mu.Lock()
	r.results = append(r.results, Result{Duration: d, Err: err})
	r.mu.Unlock()
}

// Results returns a copy of everything recorded so far.
func (r *Recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// Percentile is the latency at or below which P percent of successful
// requests completed.
type Percentile struct {
	P     float64       `json:"p"`
	Value time.Duration `json:"value_ns"`
}

// Bucket counts successful requests with latency up to Mark.
type Bucket struct {
	Mark  time.Duration `json:"mark_ns"`
	Count int           `json:"count"`
}

// Stats summarizes a set of results collected over Total wall time.
type Stats struct {
	Count       int            `json:"count"`
	Errors      int            `json:"errors"`
	ErrorDist   map[string]int `json:"error_distribution,omitempty"`
	Total       time.Duration  `json:"total_ns"`
	Fastest     time.Duration  `json:"fastest_ns"`
	Slowest     time.Duration  `json:"slowest_ns"`
	Average     time.Duration  `json:"average_ns"`
	RPS         float64        `json:"rps"`
	Percentiles []Percentile   `json:"percentiles,omitempty"`
	Histogram   []Bucket       `json:"histogram,omitempty"`
}

// Compute builds Stats. Failed requests count towards Errors and the error
// distribution only; latency figures describe successful requests.
func Compute(results []Result, total time.Duration) *Stats {
	s := &Stats{Count: len(results), Total: total}

	lats := make([]time.Duration, 0, len(results))
	var sum time.Duration
	for _, r := range results {
		if r.Err != nil {
			s.Errors++
			if s.ErrorDist == nil {
				s.ErrorDist = make(map[string]int)
			}
			s.ErrorDist[r.Err.Error()]++
			continue
		}
		lats = append(lats, r.Duration)
		sum += r.Duration
	}
	if len(lats) == 0 {
		return s
	}

	slices.Sort(lats)
	s.Fastest = lats[0]
	s.Slowest = lats[len(lats)-1]
	s.Average = sum / time.Duration(len(lats))
	if total > 0 {
		s.RPS = float64(len(lats)) / total.Seconds()
	}

	s.Percentiles = make([]Percentile, len(Percentiles))
	for i, p := range Percentiles {
		s.Percentiles[i] = Percentile{P: p, Value: NearestRank(lats, p)}
	}
	s.Histogram = histogram(lats, s.Fastest, s.Slowest)
	return s
}

// NearestRank returns the p-th percentile of sorted using the nearest-rank
// method. sorted must be ascending and non-empty.
func NearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}

// Quantile returns the recorded percentile p, or zero when absent.
func (s *Stats) Quantile(p float64) time.Duration {
	for _, q := range s.Percentiles {
		if q.P == p {
			return q.Value
		}
	}
	return 0
}

func histogram(sorted []time.Duration, fastest, slowest time.Duration) []Bucket {
	step := (slowest - fastest) / HistogramBuckets
	buckets := make([]Bucket, HistogramBuckets)
	for i := range buckets {
		buckets[i].Mark = fastest + step*time.Duration(i+1)
	}
	buckets[HistogramBuckets-1].Mark = slowest

	bi := 0
	for _, lat := range sorted {
		for bi < len(buckets)-1 && lat > buckets[bi].Mark {
			bi++
		}
		buckets[bi].Count++
	}
	return buckets
}
