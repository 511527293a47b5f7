package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/quantize"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, dataset.FormatCIFAR10, cfg.Dataset.Source.Format)
	assert.Equal(t, 200, cfg.Dataset.Source.Limit)
	assert.Equal(t, 224, cfg.Dataset.Preprocess.Size)
	assert.Equal(t, []float32{0.485, 0.456, 0.406}, cfg.Dataset.Preprocess.Mean)
	assert.Equal(t, models.Architectures, cfg.Models.Names)
	assert.Equal(t, []int{1, 4, 8, 16, 32}, cfg.Benchmark.BatchSizes)
	assert.Equal(t, 8, cfg.Benchmark.QuantBatchSize)
	assert.Equal(t, []quantize.Kind{quantize.KindDynamic, quantize.KindStatic}, cfg.Quantization.Kinds)
	assert.Equal(t, 64, cfg.Quantization.CalibrationSamples)
	assert.Equal(t, providers.CPUProviderBackend, cfg.Device.Backend)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
dataset:
  format: folder
  path: /data/imagenette
  image_size: 160
models:
  names: [resnet18, vit_b_16]
  native: [vit_b_16]
  label_map:
    0: [0, 1, 2]
device:
  backend: CUDA
benchmark:
  batch_sizes: [2, 6]
  warmup_runs: 1
quantization:
  kinds: [static]
  calibration_samples: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dataset.FormatFolder, cfg.Dataset.Source.Format)
	assert.Equal(t, 160, cfg.Dataset.Preprocess.Size)
	assert.Equal(t, 200, cfg.Dataset.Source.Limit, "unset keys keep defaults")
	assert.Len(t, cfg.Dataset.Preprocess.Std, 3)
	assert.Equal(t, []models.Name{"resnet18", "vit_b_16"}, cfg.Models.Names)
	assert.Equal(t, []models.Name{"vit_b_16"}, cfg.Models.Native)
	assert.Equal(t, models.LabelMap{0: {0, 1, 2}}, cfg.Models.LabelMap)
	assert.Equal(t, []int{2, 6}, cfg.Benchmark.BatchSizes)
	assert.Equal(t, 8, cfg.Benchmark.QuantBatchSize)
	assert.Equal(t, 1, cfg.Benchmark.WarmupRuns)
	assert.Equal(t, []quantize.Kind{quantize.KindStatic}, cfg.Quantization.Kinds)
	assert.Equal(t, 0, cfg.Quantization.CalibrationSamples)
	assert.Equal(t, "./benchmark_results", cfg.Output.Dir)
	assert.Equal(t, providers.CUDAProviderBackend, cfg.Device.Backend)
}

func TestLoadEmptyFileAndPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "dataset:\n  fromat: cifar10\n"},
		{"bad format", "dataset:\n  format: tfrecord\n"},
		{"empty batch sizes", "benchmark:\n  batch_sizes: []\n"},
		{"zero batch size", "benchmark:\n  batch_sizes: [1, 0]\n"},
		{"negative warmup", "benchmark:\n  warmup_runs: -1\n"},
		{"bad quant batch", "benchmark:\n  quant_batch_size: 0\n"},
		{"bad kind", "quantization:\n  kinds: [fp16]\n"},
		{"negative calibration", "quantization:\n  calibration_samples: -5\n"},
		{"short mean", "dataset:\n  mean: [0.5]\n"},
		{"unknown backend", "device:\n  backend: tpu\n"},
		{"duplicate model", "models:\n  names: [resnet18, resnet18]\n"},
		{"native not requested", "models:\n  names: [resnet18]\n  native: [vgg16]\n"},
		{"empty label map entry", "models:\n  label_map:\n    1: []\n"},
		{"no models", "models:\n  names: []\n"},
		{"no output", "output:\n  dir: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidationErrorsWrapErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Benchmark.BatchSizes = nil
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "batch_sizes:")
	assert.Contains(t, string(data), "image_size: 224")

	cfg, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
