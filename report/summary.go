package report

import (
	"io"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/classbench/benchmark"
)

// accuracyTolerance is the spread in percentage points below which accuracy counts as constant.
const accuracyTolerance = 1e-9

// ModelSummary aggregates the sweep of one model.
type ModelSummary struct {
	Model          string
	Runs           int
	MeanAccuracy   float64
	StdAccuracy    float64
	MeanSeconds    float64
	StdSeconds     float64
	FastestBatch   int
	FastestSeconds float64
	// AccuracyVaries is set when accuracy differs across batch sizes, which points at a
	// batch-dependent bug in the runtime or the model.
	AccuracyVaries bool
}

// Summarize aggregates results per model, in first-appearance order.
func Summarize(results []benchmark.Result) []ModelSummary {
	var order []string
	grouped := make(map[string][]benchmark.Result)
	for _, r := range results {
		if _, ok := grouped[r.Model]; !ok {
			order = append(order, r.Model)
		}
		grouped[r.Model] = append(grouped[r.Model], r)
	}

	out := make([]ModelSummary, 0, len(order))
	for _, model := range order {
		runs := grouped[model]
		acc := make([]float64, len(runs))
		secs := make([]float64, len(runs))

		s := ModelSummary{Model: model, Runs: len(runs), FastestBatch: runs[0].BatchSize, FastestSeconds: runs[0].Duration.Seconds()}
		lo, hi := runs[0].Accuracy, runs[0].Accuracy
		for i, r := range runs {
			acc[i] = r.Accuracy
			secs[i] = r.Duration.Seconds()
			if secs[i] < s.FastestSeconds {
				s.FastestBatch, s.FastestSeconds = r.BatchSize, secs[i]
			}
			if r.Accuracy < lo {
				lo = r.Accuracy
			}
			if r.Accuracy > hi {
				hi = r.Accuracy
			}
		}

		s.MeanAccuracy, s.StdAccuracy = meanStd(acc)
		s.MeanSeconds, s.StdSeconds = meanStd(secs)
		s.AccuracyVaries = hi-lo > accuracyTolerance
		out = append(out, s)
	}
	return out
}

func meanStd(x []float64) (float64, float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

// WriteSummaryTable renders per-model aggregates.
func WriteSummaryTable(w io.Writer, summaries []ModelSummary) {
	var data [][]string
	for _, s := range summaries {
		varies := "no"
		if s.AccuracyVaries {
			varies = "YES"
		}
		data = append(data, []string{
			s.Model,
			strconv.Itoa(s.Runs),
			formatAccuracy(s.MeanAccuracy),
			strconv.FormatFloat(s.StdAccuracy, 'f', 3, 64),
			strconv.FormatFloat(s.MeanSeconds, 'f', 3, 64) + "s",
			strconv.FormatFloat(s.StdSeconds, 'f', 3, 64) + "s",
			strconv.Itoa(s.FastestBatch),
			varies,
		})
	}

	table := newTable(w, []string{"MODEL", "RUNS", "MEAN ACC", "STD ACC", "MEAN TIME", "STD TIME", "FASTEST BATCH", "ACC VARIES"})
	table.AppendBulk(data)
	table.Render()
}
