package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/benchmark"
	"github.com/nvr-ai/classbench/config"
	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/models/native"
	"github.com/nvr-ai/classbench/preprocess"
	"github.com/nvr-ai/classbench/quantize"
)

// env is everything a command needs, derived from one configuration.
type env struct {
	cfg       config.Config
	transform *preprocess.Transform
	test      *dataset.Subset
	train     *dataset.Subset
}

// loadConfig reads the --config flag.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	slog.Debug("configuration loaded", "path", path, "models", cfg.Models.Names, "backend", cfg.Device.Backend)
	return cfg, nil
}

// newEnv opens the test split and, when something needs it, the train split.
func newEnv(cfg config.Config, withData bool) (*env, error) {
	transform, err := preprocess.NewTransform(cfg.Dataset.Preprocess)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, transform: transform}
	if !withData {
		return e, nil
	}

	if e.test, err = dataset.Open(cfg.Dataset.Source, dataset.SplitTest, transform); err != nil {
		return nil, errors.Wrap(err, "opening test split")
	}

	trainLimit := cfg.Quantization.CalibrationSamples
	if len(cfg.Models.Native) > 0 && cfg.Dataset.Source.Limit > trainLimit {
		trainLimit = cfg.Dataset.Source.Limit
	}
	if trainLimit > 0 && (len(cfg.Quantization.Kinds) > 0 || len(cfg.Models.Native) > 0) {
		src := cfg.Dataset.Source
		src.Limit = trainLimit
		if e.train, err = dataset.Open(src, dataset.SplitTrain, transform); err != nil {
			return nil, errors.Wrap(err, "opening train split")
		}
	}
	return e, nil
}

// registry serves exported graphs from the models directory and native networks for the
// names listed under models.native.
func (e *env) registry() *models.Registry {
	r := models.DefaultRegistry(e.cfg.Models.Dir, e.cfg.Device)
	for _, name := range e.cfg.Models.Native {
		r.Register(name, e.nativeLoader())
	}
	return r
}

func (e *env) nativeLoader() models.Loader {
	return func(_ context.Context, name models.Name) (inference.Classifier, error) {
		if e.train == nil {
			return nil, errors.Wrapf(models.ErrUnavailable, "native %s needs the train split", name)
		}
		batches, err := dataset.Batches(e.train, e.cfg.Benchmark.QuantBatchSize)
		if err != nil {
			return nil, err
		}
		classes := 0
		for _, l := range e.train.Labels() {
			if l+1 > classes {
				classes = l + 1
			}
		}
		net, err := native.NewCentroid(string(name), e.transform.Shape(), batches, classes)
		if err != nil {
			return nil, err
		}
		slog.Info("native network fitted", "model", name, "samples", e.train.Len(), "classes", classes)
		return net, nil
	}
}

// calibration returns the first calibration_samples train samples, batched.
func (e *env) calibration() (quantize.Calibration, error) {
	n := e.cfg.Quantization.CalibrationSamples
	if n == 0 || e.train == nil {
		for _, k := range e.cfg.Quantization.Kinds {
			if k == quantize.KindStatic {
				slog.Warn("static quantization will run without calibration data", "calibration_samples", n)
				break
			}
		}
		return quantize.Calibration{}, nil
	}

	samples := make([]dataset.Sample, 0, n)
	for i := 0; i < e.train.Len() && i < n; i++ {
		samples = append(samples, e.train.At(i))
	}
	subset, err := dataset.NewSubset(samples, e.train.Shape())
	if err != nil {
		return quantize.Calibration{}, err
	}
	return benchmark.NewCalibration(subset, e.cfg.Benchmark.QuantBatchSize)
}
