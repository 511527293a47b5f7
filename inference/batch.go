package inference

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Batch is a contiguous block of preprocessed images with their ground-truth labels.
type Batch struct {
	// Images is shaped (N, C, H, W) with float32 backing.
	Images *tensor.Dense
	// Labels holds one dataset label per image.
	Labels []int
}

// Size returns the number of images in the batch.
func (b Batch) Size() int {
	return len(b.Labels)
}

// NewBatch packs equally sized CHW images into a single (N, C, H, W) tensor.
//
// Arguments:
//   - images: The CHW planes, one slice per image.
//   - labels: The labels, aligned with images.
//   - shape: The per-image shape (C, H, W).
//
// Returns:
//   - Batch: The packed batch.
//   - error: An error if the inputs are empty, misaligned or mis-sized.
func NewBatch(images [][]float32, labels []int, shape [3]int) (Batch, error) {
	if len(images) == 0 {
		return Batch{}, fmt.Errorf("batch has no images")
	}
	if len(images) != len(labels) {
		return Batch{}, fmt.Errorf("batch has %d images but %d labels", len(images), len(labels))
	}

	per := shape[0] * shape[1] * shape[2]
	backing := make([]float32, 0, per*len(images))
	for i, img := range images {
		if len(img) != per {
			return Batch{}, fmt.Errorf("image %d holds %d floats, want %d", i, len(img), per)
		}
		backing = append(backing, img...)
	}

	return Batch{
		Images: tensor.New(
			tensor.WithShape(len(images), shape[0], shape[1], shape[2]),
			tensor.WithBacking(backing),
		),
		Labels: append([]int(nil), labels...),
	}, nil
}

// Predictions returns the arg-max class per row of a (N, K) score tensor.
//
// Arguments:
//   - scores: The class scores.
//
// Returns:
//   - []int: The predicted class index per row.
//   - error: An error if the tensor is not two-dimensional.
func Predictions(scores *tensor.Dense) ([]int, error) {
	if scores == nil || scores.Dims() != 2 {
		return nil, fmt.Errorf("scores must be a (N, K) tensor")
	}

	idx, err := scores.Argmax(1)
	if err != nil {
		return nil, fmt.Errorf("argmax failed: %w", err)
	}

	switch v := idx.Data().(type) {
	case []int:
		return v, nil
	case int:
		return []int{v}, nil
	default:
		return nil, fmt.Errorf("unexpected argmax data type %T", v)
	}
}
