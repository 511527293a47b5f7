// Package config - YAML configuration of a benchmark run.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/classbench/benchmark"
	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/preprocess"
	"github.com/nvr-ai/classbench/quantize"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultImageSize is the side of the square input the pretrained models expect.
const DefaultImageSize = 224

// DefaultCalibrationSamples is the number of train-split samples observed by static quantization.
const DefaultCalibrationSamples = 64

// Config is the complete description of a run.
type Config struct {
	Dataset      Dataset          `yaml:"dataset"`
	Models       Models           `yaml:"models"`
	Device       providers.Config `yaml:"device"`
	Benchmark    Benchmark        `yaml:"benchmark"`
	Quantization Quantization     `yaml:"quantization"`
	Output       Output           `yaml:"output"`
}

// Dataset selects the data and its preprocessing.
type Dataset struct {
	Source     dataset.Config    `yaml:",inline"`
	Preprocess preprocess.Config `yaml:",inline"`
}

// Models selects which models run and how they are scored.
type Models struct {
	// Dir holds <name>.onnx files.
	Dir   string        `yaml:"dir"`
	Names []models.Name `yaml:"names"`
	// Native lists names served by an in-process nearest-centroid network fitted on the train
	// split instead of an exported graph.
	Native   []models.Name   `yaml:"native,omitempty"`
	LabelMap models.LabelMap `yaml:"label_map"`
}

// Benchmark configures the sweeps.
type Benchmark struct {
	BatchSizes     []int `yaml:"batch_sizes"`
	QuantBatchSize int   `yaml:"quant_batch_size"`
	WarmupRuns     int   `yaml:"warmup_runs"`
}

// Quantization configures variant derivation.
type Quantization struct {
	Kinds []quantize.Kind `yaml:"kinds"`
	// CalibrationSamples is the number of train-split samples for static quantization;
	// 0 disables calibration.
	CalibrationSamples int `yaml:"calibration_samples"`
}

// Output configures where results go.
type Output struct {
	Dir   string `yaml:"dir"`
	Plots bool   `yaml:"plots"`
}

// Default returns the configuration of the reference run.
func Default() Config {
	return Config{
		Dataset: Dataset{
			Source: dataset.Config{
				Format: dataset.FormatCIFAR10,
				Path:   "./data/cifar-10-batches-bin",
				Limit:  dataset.DefaultLimit,
			},
			Preprocess: preprocess.ImageNetConfig(DefaultImageSize),
		},
		Models: Models{
			Dir:      "./models",
			Names:    append([]models.Name(nil), models.Architectures...),
			LabelMap: models.LabelMap{},
		},
		Device: providers.DefaultConfig(),
		Benchmark: Benchmark{
			BatchSizes:     append([]int(nil), benchmark.DefaultBatchSizes...),
			QuantBatchSize: benchmark.DefaultQuantBatchSize,
		},
		Quantization: Quantization{
			Kinds:              append([]quantize.Kind(nil), quantize.Kinds...),
			CalibrationSamples: DefaultCalibrationSamples,
		},
		Output: Output{
			Dir:   "./benchmark_results",
			Plots: true,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The file; an empty path returns the defaults.
//
// Returns:
//   - Config: The effective configuration.
//   - error: An error if the file cannot be read or parsed, or validation fails.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return buf.Bytes(), nil
}

// normalize canonicalizes case-insensitive names; unknown names are left for Validate.
func (c *Config) normalize() {
	if b, err := providers.ParseBackend(string(c.Device.Backend)); err == nil {
		c.Device.Backend = b
	}
	for i, k := range c.Quantization.Kinds {
		if parsed, err := quantize.ParseKind(string(k)); err == nil {
			c.Quantization.Kinds[i] = parsed
		}
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate checks every section.
func (c Config) Validate() error {
	switch c.Dataset.Source.Format {
	case dataset.FormatCIFAR10, dataset.FormatFolder, dataset.FormatSynthetic:
	default:
		return invalid("dataset.format %q is not one of cifar10, folder, synthetic", c.Dataset.Source.Format)
	}
	if c.Dataset.Source.Format != dataset.FormatSynthetic && c.Dataset.Source.Path == "" {
		return invalid("dataset.path is required")
	}
	if c.Dataset.Source.Limit <= 0 {
		return invalid("dataset.limit must be positive, got %d", c.Dataset.Source.Limit)
	}
	if err := c.Dataset.Preprocess.Validate(); err != nil {
		return invalid("dataset: %v", err)
	}

	if len(c.Models.Names) == 0 {
		return invalid("models.names is empty")
	}
	seen := make(map[models.Name]bool)
	for _, n := range c.Models.Names {
		if seen[n] {
			return invalid("models.names lists %q twice", n)
		}
		seen[n] = true
	}
	for _, n := range c.Models.Native {
		if !seen[n] {
			return invalid("models.native lists %q which is not in models.names", n)
		}
	}
	if err := c.Models.LabelMap.Validate(); err != nil {
		return invalid("models.label_map: %v", err)
	}

	if err := c.Device.Validate(); err != nil {
		return invalid("device: %v", err)
	}

	if len(c.Benchmark.BatchSizes) == 0 {
		return invalid("benchmark.batch_sizes is empty")
	}
	for _, b := range c.Benchmark.BatchSizes {
		if b <= 0 {
			return invalid("benchmark.batch_sizes must be positive, got %d", b)
		}
	}
	if c.Benchmark.QuantBatchSize <= 0 {
		return invalid("benchmark.quant_batch_size must be positive, got %d", c.Benchmark.QuantBatchSize)
	}
	if c.Benchmark.WarmupRuns < 0 {
		return invalid("benchmark.warmup_runs must be >= 0, got %d", c.Benchmark.WarmupRuns)
	}

	for _, k := range c.Quantization.Kinds {
		if _, err := quantize.ParseKind(string(k)); err != nil {
			return invalid("quantization.kinds: %v", err)
		}
	}
	if c.Quantization.CalibrationSamples < 0 {
		return invalid("quantization.calibration_samples must be >= 0, got %d", c.Quantization.CalibrationSamples)
	}

	if c.Output.Dir == "" {
		return invalid("output.dir is required")
	}
	return nil
}
