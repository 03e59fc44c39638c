package latency

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestComputeBasic(t *testing.T) {
	var results []Result
	for i := 1; i <= 100; i++ {
		results = append(results, Result{Duration: ms(i)})
	}
	s := Compute(results, 2*time.Second)

	if s.Count != 100 || s.Errors != 0 {
		t.Fatalf("count=%d errors=%d", s.Count, s.Errors)
	}
	if s.Fastest != ms(1) || s.Slowest != ms(100) {
		t.Errorf("fastest=%v slowest=%v", s.Fastest, s.Slowest)
	}
	if want := 50500 * time.Microsecond; s.Average != want {
		t.Errorf("average=%v, want %v", s.Average, want)
	}
	if s.RPS != 50 {
		t.Errorf("rps=%v, want 50", s.RPS)
	}
	for _, tt := range []struct {
		p    float64
		want time.Duration
	}{{10, ms(10)}, {50, ms(50)}, {95, ms(95)}, {99, ms(99)}} {
		if got := s.Quantile(tt.p); got != tt.want {
			t.Errorf("p%v = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestComputeErrors(t *testing.T) {
	boom := errors.New("boom")
	results := []Result{
		{Duration: ms(5)},
		{Duration: ms(1), Err: boom},
		{Duration: ms(2), Err: boom},
		{Duration: ms(3), Err: errors.New("timeout")},
	}
	s := Compute(results, time.Second)
	if s.Count != 4 || s.Errors != 3 {
		t.Fatalf("count=%d errors=%d", s.Count, s.Errors)
	}
	if s.ErrorDist["boom"] != 2 || s.ErrorDist["timeout"] != 1 {
		t.Fatalf("error dist = %v", s.ErrorDist)
	}
	if s.Fastest != ms(5) || s.Slowest != ms(5) {
		t.Errorf("failed requests leaked into latency: %v..%v", s.Fastest, s.Slowest)
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, 0)
	if s.Count != 0 || s.Percentiles != nil || s.Histogram != nil || s.RPS != 0 {
		t.Fatalf("unexpected stats for no samples: %+v", s)
	}
}

func TestNearestRank(t *testing.T) {
	sorted := []time.Duration{ms(1), ms(2), ms(3), ms(4), ms(5)}
	tests := []struct {
		p    float64
		want time.Duration
	}{{0, ms(1)}, {20, ms(1)}, {21, ms(2)}, {50, ms(3)}, {100, ms(5)}}
	for _, tt := range tests {
		if got := NearestRank(sorted, tt.p); got != tt.want {
			t.Errorf("NearestRank(p%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestHistogram(t *testing.T) {
	var results []Result
	for i := 0; i <= 100; i++ {
		results = append(results, Result{Duration: ms(i)})
	}
	s := Compute(results, time.Second)
	if len(s.Histogram) != HistogramBuckets {
		t.Fatalf("buckets = %d", len(s.Histogram))
	}
	total := 0
	for _, b := range s.Histogram {
		total += b.Count
	}
	if total != 101 {
		t.Fatalf("histogram counts %d samples, want 101", total)
	}
	if s.Histogram[0].Mark != ms(10) || s.Histogram[0].Count != 11 {
		t.Errorf("first bucket = %+v", s.Histogram[0])
	}
	if last := s.Histogram[HistogramBuckets-1]; last.Mark != ms(100) {
		t.Errorf("last mark = %v", last.Mark)
	}
}

func TestHistogramSingleValue(t *testing.T) {
	s := Compute([]Result{{Duration: ms(7)}, {Duration: ms(7)}}, time.Second)
	if s.Histogram[0].Count != 2 {
		t.Fatalf("identical latencies should land in the first bucket: %+v", s.Histogram)
	}
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder(0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				r.Add(time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()
	if n := len(r.Results()); n != 800 {
		t.Fatalf("recorded %d, want 800", n)
	}
}
