package benchmark

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/profiler"
)

// ErrEmptyDataset is returned when an evaluation sees no samples.
var ErrEmptyDataset = errors.New("evaluation dataset is empty")

// Evaluation is the outcome of one full pass of a classifier over a loader.
type Evaluation struct {
	// Accuracy is 100 × Correct / Total.
	Accuracy float64
	// Elapsed covers batch assembly, inference and scoring of every batch.
	Elapsed time.Duration
	Correct int
	Total   int
	Latency profiler.LatencyStats
	Memory  MemoryMetrics
}

// EvaluateOptions tunes an evaluation.
type EvaluateOptions struct {
	// LabelMap widens what counts as a correct prediction; nil means identity.
	LabelMap models.LabelMap
	// Warmup is the number of untimed passes over the first batch before measuring.
	Warmup int
}

// Evaluate runs a classifier over every batch of loader and measures top-1 accuracy.
//
// The loader is rewound before and after warmup. Context cancellation is checked between
// batches.
//
// Arguments:
//   - ctx: The context.
//   - clf: The classifier.
//   - loader: The batch source.
//   - opts: The evaluation options.
//
// Returns:
//   - Evaluation: The measurement.
//   - error: ErrEmptyDataset when no samples were seen, or the first inference failure.
func Evaluate(ctx context.Context, clf inference.Classifier, loader *dataset.Loader, opts EvaluateOptions) (Evaluation, error) {
	if err := warmup(ctx, clf, loader, opts.Warmup); err != nil {
		return Evaluation{}, err
	}
	loader.Reset()

	var (
		eval    Evaluation
		latency profiler.TimeTracker
		sampler = profiler.NewSampler(0)
	)
	runtime.GC()
	startMem := readMemStats()
	sampler.Start()
	defer sampler.Stop()
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return Evaluation{}, err
		}

		batch, err := loader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Evaluation{}, errors.Wrap(err, "assembling batch")
		}

		done := latency.Track()
		scores, err := clf.Classify(ctx, batch.Images)
		done()
		if err != nil {
			return Evaluation{}, errors.Wrapf(err, "classifying with %s", clf.Name())
		}
		preds, err := inference.Predictions(scores)
		if err != nil {
			return Evaluation{}, err
		}
		if len(preds) != batch.Size() {
			return Evaluation{}, errors.Errorf("%s returned %d predictions for %d images", clf.Name(), len(preds), batch.Size())
		}

		for i, pred := range preds {
			if opts.LabelMap.Accepts(batch.Labels[i], pred) {
				eval.Correct++
			}
		}
		eval.Total += batch.Size()
	}

	eval.Elapsed = time.Since(start)
	eval.Latency = latency.Stats()
	eval.Memory = memoryDelta(startMem, readMemStats())
	eval.Memory.Peak = sampler.Stop()

	if eval.Total == 0 {
		return Evaluation{}, ErrEmptyDataset
	}
	eval.Accuracy = 100 * float64(eval.Correct) / float64(eval.Total)

	slog.Info("evaluation finished",
		"model", clf.Name(), "batch_size", loader.BatchSize(),
		"accuracy", eval.Accuracy, "elapsed", eval.Elapsed, "samples", eval.Total,
		"p95_batch", eval.Latency.P95, "peak_heap", profiler.FormatBytes(eval.Memory.Peak.HeapAllocBytes))
	return eval, nil
}

func warmup(ctx context.Context, clf inference.Classifier, loader *dataset.Loader, runs int) error {
	if runs <= 0 {
		return nil
	}

	loader.Reset()
	batch, err := loader.Next()
	if errors.Is(err, io.EOF) {
		return ErrEmptyDataset
	}
	if err != nil {
		return errors.Wrap(err, "assembling warmup batch")
	}

	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := clf.Classify(ctx, batch.Images); err != nil {
			return errors.Wrapf(err, "warmup run %d of %s", i, clf.Name())
		}
	}
	slog.Debug("warmup finished", "model", clf.Name(), "runs", runs)
	return nil
}
