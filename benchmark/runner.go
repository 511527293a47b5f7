package benchmark

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/quantize"
)

// DefaultBatchSizes is the sweep order for full-precision models.
var DefaultBatchSizes = []int{1, 4, 8, 16, 32}

// DefaultQuantBatchSize is the batch size quantized variants are measured at.
const DefaultQuantBatchSize = 8

// NewRunnerArgs configures a Runner.
type NewRunnerArgs struct {
	// BatchSizes is the sweep, in order. Defaults to DefaultBatchSizes.
	BatchSizes []int
	// QuantBatchSize defaults to DefaultQuantBatchSize.
	QuantBatchSize int
	// WarmupRuns is the number of untimed passes before each measurement.
	WarmupRuns int
	// LabelMap is applied to every evaluation.
	LabelMap models.LabelMap
	// RunID defaults to a random UUID.
	RunID string
}

// Runner measures classifiers over one subset and appends every measurement to its store.
type Runner struct {
	args  NewRunnerArgs
	store *Store
}

// NewRunner creates a runner with its own store.
//
// Arguments:
//   - args: The runner configuration.
//
// Returns:
//   - *Runner: The runner.
//   - error: An error if a batch size is not positive.
func NewRunner(args NewRunnerArgs) (*Runner, error) {
	if len(args.BatchSizes) == 0 {
		args.BatchSizes = DefaultBatchSizes
	}
	if args.QuantBatchSize == 0 {
		args.QuantBatchSize = DefaultQuantBatchSize
	}
	if args.RunID == "" {
		args.RunID = uuid.NewString()
	}

	for _, b := range append([]int{args.QuantBatchSize}, args.BatchSizes...) {
		if b <= 0 {
			return nil, errors.Errorf("batch sizes must be positive, got %d", b)
		}
	}
	if args.WarmupRuns < 0 {
		return nil, errors.Errorf("warmup runs must be >= 0, got %d", args.WarmupRuns)
	}

	return &Runner{args: args, store: NewStore(args.RunID)}, nil
}

// Store returns the store results are appended to.
func (r *Runner) Store() *Store {
	return r.store
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.store.RunID()
}

// Sweep evaluates every loaded model at every batch size, appending one Result per pair.
//
// Models run in entry order and batch sizes in configured order. Skipped entries produce no
// records.
func (r *Runner) Sweep(ctx context.Context, subset *dataset.Subset, entries []models.Entry) error {
	loaded := models.LoadedEntries(entries)
	byName := make(map[string]inference.Classifier, len(loaded))
	names := make([]string, 0, len(loaded))
	for _, e := range loaded {
		byName[string(e.Name)] = e.Classifier
		names = append(names, string(e.Name))
	}

	for _, sc := range SweepScenarios(names, r.args.BatchSizes, r.args.WarmupRuns) {
		clf := byName[sc.Model]
		eval, err := r.evaluate(ctx, clf, subset, sc)
		if err != nil {
			return err
		}

		rt, precision := inference.Describe(clf)
		r.store.AppendResult(Result{
			RunID:     r.RunID(),
			Model:     sc.Model,
			Runtime:   rt,
			Precision: precision,
			BatchSize: sc.BatchSize,
			Accuracy:  eval.Accuracy,
			Duration:  eval.Elapsed,
			Samples:   eval.Total,
			Correct:   eval.Correct,
			Latency:   eval.Latency,
			Memory:    eval.Memory,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

// QuantSweep evaluates every variant at the quantized batch size, appending one QuantResult each.
//
// The plan comes from QuantScenarios: models in the order their first variant appears, then
// kinds in quantize.Kinds order. Planned pairs without a variant are skipped.
func (r *Runner) QuantSweep(ctx context.Context, subset *dataset.Subset, variants []quantize.Variant) error {
	type variantKey struct {
		model string
		kind  quantize.Kind
	}

	byKey := make(map[variantKey]quantize.Variant, len(variants))
	var names []string
	for _, v := range variants {
		if !slices.Contains(quantize.Kinds, v.Kind) {
			return errors.Errorf("%s variant of %s has unknown kind", v.Kind, v.Model)
		}
		key := variantKey{v.Model, v.Kind}
		if _, dup := byKey[key]; dup {
			return errors.Errorf("duplicate %s variant of %s", v.Kind, v.Model)
		}
		byKey[key] = v
		if !slices.Contains(names, v.Model) {
			names = append(names, v.Model)
		}
	}

	for _, sc := range QuantScenarios(names, quantize.Kinds, r.args.QuantBatchSize, r.args.WarmupRuns) {
		v, ok := byKey[variantKey{sc.Model, sc.Kind}]
		if !ok {
			continue
		}

		eval, err := r.evaluate(ctx, v.Classifier, subset, sc)
		if err != nil {
			return err
		}

		r.store.AppendQuantResult(QuantResult{
			RunID:           r.RunID(),
			Model:           v.Model,
			Kind:            v.Kind,
			BatchSize:       sc.BatchSize,
			Accuracy:        eval.Accuracy,
			Duration:        eval.Elapsed,
			Samples:         eval.Total,
			Correct:         eval.Correct,
			Applied:         v.Report.Applied,
			Calibrated:      v.Report.Calibrated,
			QuantizedLayers: v.Report.QuantizedLayers,
			SkippedLayers:   v.Report.SkippedLayers,
			Latency:         eval.Latency,
			Memory:          eval.Memory,
			Timestamp:       time.Now().UTC(),
		})
	}
	return nil
}

func (r *Runner) evaluate(ctx context.Context, clf inference.Classifier, subset *dataset.Subset, sc Scenario) (Evaluation, error) {
	loader, err := dataset.NewLoader(subset, sc.BatchSize)
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "scenario %s", sc.Name())
	}

	slog.Debug("running scenario", "scenario", sc.Name(), "batches", loader.NumBatches())
	eval, err := Evaluate(ctx, clf, loader, EvaluateOptions{LabelMap: r.args.LabelMap, Warmup: sc.WarmupRuns})
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "scenario %s", sc.Name())
	}
	return eval, nil
}

// DeriveVariants derives one variant per loaded model and kind, models first then kinds.
//
// On failure the variants derived so far are closed.
func DeriveVariants(ctx context.Context, entries []models.Entry, kinds []quantize.Kind, calib quantize.Calibration) ([]quantize.Variant, error) {
	var variants []quantize.Variant
	for _, e := range models.LoadedEntries(entries) {
		for _, kind := range kinds {
			v, err := quantize.Derive(ctx, e.Classifier, kind, calib)
			if err != nil {
				CloseVariants(variants)
				return nil, err
			}
			variants = append(variants, v)
		}
	}
	return variants, nil
}

// CloseVariants closes every variant, logging failures.
func CloseVariants(variants []quantize.Variant) {
	for _, v := range variants {
		if err := v.Close(); err != nil {
			slog.Warn("closing variant failed", "model", v.Model, "kind", v.Kind, "error", err)
		}
	}
}

// NewCalibration batches a calibration subset. A nil subset yields an empty calibration.
func NewCalibration(subset *dataset.Subset, batchSize int) (quantize.Calibration, error) {
	if subset == nil {
		return quantize.Calibration{}, nil
	}
	batches, err := dataset.Batches(subset, batchSize)
	if err != nil {
		return quantize.Calibration{}, errors.Wrap(err, "batching calibration data")
	}
	return quantize.Calibration{Batches: batches}, nil
}
