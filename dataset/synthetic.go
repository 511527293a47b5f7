package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
)

// FormatSynthetic generates deterministic class-conditioned tensors instead of reading files.
// It exercises the whole pipeline on machines without a dataset.
const FormatSynthetic Format = "synthetic"

// SyntheticClasses is the label space used by synthetic subsets.
const SyntheticClasses = 10

// Synthetic builds a deterministic subset of n samples.
//
// Sample i carries label i % classes; its planes are a per-class channel offset plus gaussian
// noise, so classes are separable but not trivially so.
//
// Arguments:
//   - n: The number of samples.
//   - shape: The per-sample (C, H, W) shape.
//   - classes: The number of labels.
//   - seed: The random seed.
//
// Returns:
//   - *Subset: The subset.
//   - error: An error if n or classes are not positive.
func Synthetic(n int, shape [3]int, classes int, seed int64) (*Subset, error) {
	if n <= 0 {
		return nil, ErrEmptySubset
	}
	if classes <= 0 {
		return nil, errors.Errorf("classes must be positive, got %d", classes)
	}

	// Class offsets are shared by every split; only the noise depends on the seed.
	centers := rand.New(rand.NewSource(int64(classes)))
	rng := rand.New(rand.NewSource(seed))
	per := shape[0] * shape[1] * shape[2]
	plane := shape[1] * shape[2]

	offsets := make([][]float32, classes)
	for c := range offsets {
		offsets[c] = make([]float32, shape[0])
		for ch := range offsets[c] {
			offsets[c][ch] = float32(centers.NormFloat64())
		}
	}

	samples := make([]Sample, n)
	for i := range samples {
		label := i % classes
		img := make([]float32, per)
		for j := range img {
			img[j] = offsets[label][j/plane] + 0.5*float32(rng.NormFloat64())
		}
		samples[i] = Sample{Index: i, Label: label, Image: img}
	}

	return NewSubset(samples, shape)
}
