package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nvr-ai/classbench/benchmark"
)

// Verdict classifies one comparison.
type Verdict string

const (
	VerdictStable      Verdict = "stable"
	VerdictRegression  Verdict = "regression"
	VerdictImprovement Verdict = "improvement"
	// VerdictNew marks a model and batch size absent from the baseline.
	VerdictNew Verdict = "new"
)

// Tolerance is how far a measurement may move before it is flagged.
type Tolerance struct {
	// DurationPercent is the relative change in duration, in percent.
	DurationPercent float64
	// AccuracyPoints is the absolute change in accuracy, in percentage points.
	AccuracyPoints float64
}

// DefaultTolerance flags runs 10% slower or one accuracy point worse.
func DefaultTolerance() Tolerance {
	return Tolerance{DurationPercent: 10, AccuracyPoints: 1}
}

// Comparison is one model and batch size measured in two runs.
type Comparison struct {
	Model     string
	BatchSize int
	Baseline  *benchmark.Result
	Current   benchmark.Result
	// DurationChange is the relative duration change in percent; positive is slower.
	DurationChange float64
	// AccuracyChange is in percentage points; negative is worse.
	AccuracyChange float64
	Verdict        Verdict
}

type resultKey struct {
	model string
	batch int
}

// Compare matches current results against a baseline run by model and batch size.
//
// Accuracy drops beyond the tolerance are regressions even when the run got faster.
//
// Arguments:
//   - baseline: The reference results.
//   - current: The results under test, in the order they are reported.
//   - tol: The tolerance.
//
// Returns:
//   - []Comparison: One comparison per current result.
func Compare(baseline, current []benchmark.Result, tol Tolerance) []Comparison {
	base := make(map[resultKey]benchmark.Result, len(baseline))
	for _, r := range baseline {
		base[resultKey{r.Model, r.BatchSize}] = r
	}

	out := make([]Comparison, 0, len(current))
	for _, cur := range current {
		c := Comparison{Model: cur.Model, BatchSize: cur.BatchSize, Current: cur, Verdict: VerdictNew}
		if b, ok := base[resultKey{cur.Model, cur.BatchSize}]; ok {
			b := b
			c.Baseline = &b
			c.AccuracyChange = cur.Accuracy - b.Accuracy
			if b.Duration > 0 {
				c.DurationChange = 100 * (float64(cur.Duration) - float64(b.Duration)) / float64(b.Duration)
			}
			c.Verdict = verdict(c, tol)
		}
		out = append(out, c)
	}
	return out
}

func verdict(c Comparison, tol Tolerance) Verdict {
	switch {
	case c.AccuracyChange < -tol.AccuracyPoints, c.DurationChange > tol.DurationPercent:
		return VerdictRegression
	case c.AccuracyChange > tol.AccuracyPoints, c.DurationChange < -tol.DurationPercent:
		return VerdictImprovement
	default:
		return VerdictStable
	}
}

// HasRegression reports whether any comparison regressed.
func HasRegression(comparisons []Comparison) bool {
	for _, c := range comparisons {
		if c.Verdict == VerdictRegression {
			return true
		}
	}
	return false
}

// WriteCompareTable prints one row per comparison.
func WriteCompareTable(w io.Writer, comparisons []Comparison) {
	table := newTable(w, []string{"MODEL", "BATCH SIZE", "ACCURACY", "Δ ACCURACY", "TIME", "Δ TIME", "VERDICT"})
	var data [][]string
	for _, c := range comparisons {
		dAcc, dTime := "-", "-"
		if c.Baseline != nil {
			dAcc = fmt.Sprintf("%+.2f", c.AccuracyChange)
			dTime = fmt.Sprintf("%+.1f%%", c.DurationChange)
		}
		data = append(data, []string{
			c.Model,
			strconv.Itoa(c.BatchSize),
			formatAccuracy(c.Current.Accuracy),
			dAcc,
			formatDuration(c.Current.Duration),
			dTime,
			string(c.Verdict),
		})
	}
	table.AppendBulk(data)
	table.Render()
}
