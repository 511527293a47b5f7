package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/nvr-ai/classbench/benchmark"
)

// Chart file names written by PlotSweep.
const (
	TimeChartFile     = "time_vs_batch.png"
	AccuracyChartFile = "accuracy_vs_batch.png"
)

// PlotSweep writes inference time and accuracy against batch size, one line per model.
//
// Arguments:
//   - results: The sweep results.
//   - dir: The output directory; it is created if missing.
//
// Returns:
//   - []string: The written chart paths.
//   - error: An error if a chart cannot be built or saved.
func PlotSweep(results []benchmark.Result, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	charts := []struct {
		file   string
		title  string
		ylabel string
		value  func(benchmark.Result) float64
	}{
		{TimeChartFile, "Inference time vs batch size", "Time (s)", func(r benchmark.Result) float64 { return r.Duration.Seconds() }},
		{AccuracyChartFile, "Accuracy vs batch size", "Accuracy (%)", func(r benchmark.Result) float64 { return r.Accuracy }},
	}

	var paths []string
	for _, c := range charts {
		p := plot.New()
		p.Title.Text = c.title
		p.X.Label.Text = "Batch size"
		p.Y.Label.Text = c.ylabel
		p.Add(plotter.NewGrid())

		if err := plotutil.AddLinePoints(p, series(results, c.value)...); err != nil {
			return nil, errors.Wrapf(err, "building %s", c.file)
		}

		path := filepath.Join(dir, c.file)
		if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
			return nil, errors.Wrapf(err, "saving %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// series returns alternating name, points pairs for plotutil, one per model in order.
func series(results []benchmark.Result, value func(benchmark.Result) float64) []interface{} {
	var order []string
	points := make(map[string]plotter.XYs)
	for _, r := range results {
		if _, ok := points[r.Model]; !ok {
			order = append(order, r.Model)
		}
		points[r.Model] = append(points[r.Model], plotter.XY{X: float64(r.BatchSize), Y: value(r)})
	}

	out := make([]interface{}, 0, 2*len(order))
	for _, model := range order {
		out = append(out, model, points[model])
	}
	return out
}
