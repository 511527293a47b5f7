package profiler

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencyStats summarizes per-batch inference latency.
type LatencyStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
}

// TimeTracker records operation durations. It is not safe for concurrent use.
type TimeTracker struct {
	durations []time.Duration
}

// Track starts timing one operation and returns the function that ends it.
func (t *TimeTracker) Track() func() {
	start := time.Now()
	return func() {
		t.Record(time.Since(start))
	}
}

// Record adds one duration.
func (t *TimeTracker) Record(d time.Duration) {
	t.durations = append(t.durations, d)
}

// Stats summarizes the recorded durations; the zero value when nothing was recorded.
func (t *TimeTracker) Stats() LatencyStats {
	if len(t.durations) == 0 {
		return LatencyStats{}
	}

	x := make([]float64, len(t.durations))
	for i, d := range t.durations {
		x[i] = float64(d)
	}
	sort.Float64s(x)

	return LatencyStats{
		Count: len(x),
		Min:   time.Duration(x[0]),
		Max:   time.Duration(x[len(x)-1]),
		Mean:  time.Duration(stat.Mean(x, nil)),
		P50:   time.Duration(stat.Quantile(0.5, stat.Empirical, x, nil)),
		P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, x, nil)),
	}
}
