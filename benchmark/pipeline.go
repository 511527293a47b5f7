package benchmark

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/quantize"
)

// Pipeline wires the whole run: load models, sweep, quantize, sweep the variants.
type Pipeline struct {
	Registry *models.Registry
	Names    []models.Name
	// Test is the evaluation subset shared by every measurement.
	Test *dataset.Subset
	// Calibration feeds static quantization; it may be empty.
	Calibration quantize.Calibration
	// Kinds are the quantization kinds to derive; empty skips quantization.
	Kinds  []quantize.Kind
	Runner *Runner
}

// Run executes the pipeline and returns the model statuses.
//
// Every classifier and variant it creates is closed before returning. Measurements are in
// p.Runner.Store().
func (p Pipeline) Run(ctx context.Context) ([]models.Entry, error) {
	if p.Registry == nil || p.Runner == nil || p.Test == nil {
		return nil, errors.New("pipeline needs a registry, a runner and a test subset")
	}

	entries, err := p.Registry.Load(ctx, p.Names)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := models.CloseAll(entries); err != nil {
			slog.Warn("closing models failed", "error", err)
		}
	}()

	loaded := len(models.LoadedEntries(entries))
	slog.Info("models resolved", "requested", len(p.Names), "loaded", loaded, "run_id", p.Runner.RunID())
	if loaded == 0 {
		slog.Warn("no model could be loaded, nothing to benchmark")
		return entries, nil
	}

	if err := p.Runner.Sweep(ctx, p.Test, entries); err != nil {
		return entries, errors.Wrap(err, "benchmark sweep")
	}

	if len(p.Kinds) == 0 {
		return entries, nil
	}

	variants, err := DeriveVariants(ctx, entries, p.Kinds, p.Calibration)
	if err != nil {
		return entries, errors.Wrap(err, "quantization")
	}
	defer CloseVariants(variants)

	if err := p.Runner.QuantSweep(ctx, p.Test, variants); err != nil {
		return entries, errors.Wrap(err, "quantized benchmark")
	}
	return entries, nil
}
