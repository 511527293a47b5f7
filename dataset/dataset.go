// Package dataset - Fixed evaluation subsets of labeled image datasets.
package dataset

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/preprocess"
)

// ErrEmptySubset is returned when a subset would contain no samples.
var ErrEmptySubset = errors.New("dataset subset is empty")

// DefaultLimit is the number of leading test-split samples every model is measured on.
const DefaultLimit = 200

// Format identifies the on-disk layout of a dataset.
type Format string

const (
	// FormatCIFAR10 is the CIFAR-10 binary layout (test_batch.bin, data_batch_N.bin).
	FormatCIFAR10 Format = "cifar10"
	// FormatFolder is an image folder laid out as <root>/<split>/<class>/<file>.
	FormatFolder Format = "folder"
)

// Split selects a partition of the dataset.
type Split string

const (
	// SplitTest is the evaluation partition.
	SplitTest Split = "test"
	// SplitTrain is the training partition, used only for quantization calibration.
	SplitTrain Split = "train"
)

// Config describes where a dataset lives and how much of it to use.
type Config struct {
	// Format is the on-disk layout.
	Format Format `json:"format" yaml:"format"`
	// Path is the dataset root directory.
	Path string `json:"path"   yaml:"path"`
	// Limit is the number of leading samples taken from the split.
	Limit int `json:"limit"  yaml:"limit"`
}

// Sample is one preprocessed image with its label.
type Sample struct {
	// Index is the position of the sample in the source split.
	Index int
	// Label is the ground-truth class index.
	Label int
	// Image holds normalized CHW planes.
	Image []float32
}

// Subset is an ordered, immutable sequence of samples sharing one shape.
type Subset struct {
	samples []Sample
	shape   [3]int
}

// NewSubset builds a subset from preprocessed samples.
//
// Arguments:
//   - samples: The samples, in evaluation order.
//   - shape: The per-sample (C, H, W) shape.
//
// Returns:
//   - *Subset: The subset; it keeps its own copy of the sample slice.
//   - error: ErrEmptySubset when there are no samples, or a shape mismatch error.
func NewSubset(samples []Sample, shape [3]int) (*Subset, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySubset
	}

	per := shape[0] * shape[1] * shape[2]
	for _, s := range samples {
		if len(s.Image) != per {
			return nil, errors.Errorf("sample %d holds %d floats, want %d", s.Index, len(s.Image), per)
		}
	}

	return &Subset{
		samples: append([]Sample(nil), samples...),
		shape:   shape,
	}, nil
}

// Len returns the number of samples.
func (s *Subset) Len() int {
	return len(s.samples)
}

// At returns the i-th sample.
func (s *Subset) At(i int) Sample {
	return s.samples[i]
}

// Shape returns the per-sample (C, H, W) shape.
func (s *Subset) Shape() [3]int {
	return s.shape
}

// Labels returns the labels in evaluation order.
func (s *Subset) Labels() []int {
	out := make([]int, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.Label
	}
	return out
}

// Open reads the first cfg.Limit samples of a split and applies the transform.
//
// Arguments:
//   - cfg: The dataset configuration.
//   - split: The split to read.
//   - transform: The preprocessing transform.
//
// Returns:
//   - *Subset: The preprocessed subset.
//   - error: An error if the files cannot be read or decoded, or the subset is empty.
func Open(cfg Config, split Split, transform *preprocess.Transform) (*Subset, error) {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		samples []Sample
		err     error
	)
	switch cfg.Format {
	case FormatCIFAR10:
		samples, err = readCIFAR10(cfg.Path, split, limit, transform)
	case FormatFolder:
		samples, err = readFolder(cfg.Path, split, limit, transform)
	case FormatSynthetic:
		seed := int64(1)
		if split == SplitTrain {
			seed = 2
		}
		return Synthetic(limit, transform.Shape(), SyntheticClasses, seed)
	default:
		return nil, errors.Errorf("unsupported dataset format: %q", cfg.Format)
	}
	if err != nil {
		return nil, err
	}

	if len(samples) < limit {
		slog.Warn("dataset split has fewer samples than requested",
			"path", cfg.Path, "split", split, "requested", limit, "available", len(samples))
	}

	subset, err := NewSubset(samples, transform.Shape())
	if err != nil {
		return nil, errors.Wrapf(err, "building %s subset from %s", split, cfg.Path)
	}

	slog.Info("dataset subset ready",
		"format", cfg.Format, "split", split, "samples", subset.Len(), "shape", subset.Shape())
	return subset, nil
}
