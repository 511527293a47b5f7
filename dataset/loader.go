package dataset

import (
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/inference"
)

// Loader iterates a subset in fixed-size batches, in order, without shuffling.
// The final batch holds the remainder when the subset size is not a multiple of the batch size.
type Loader struct {
	subset    *Subset
	batchSize int
	next      int
}

// NewLoader creates a batch iterator over a subset.
//
// Arguments:
//   - subset: The subset to iterate.
//   - batchSize: The number of samples per batch.
//
// Returns:
//   - *Loader: The loader positioned at the first sample.
//   - error: An error if the batch size is not positive or the subset is nil.
func NewLoader(subset *Subset, batchSize int) (*Loader, error) {
	if subset == nil {
		return nil, ErrEmptySubset
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &Loader{subset: subset, batchSize: batchSize}, nil
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// NumBatches returns the number of batches a full pass yields.
func (l *Loader) NumBatches() int {
	return (l.subset.Len() + l.batchSize - 1) / l.batchSize
}

// Reset rewinds the loader to the first sample.
func (l *Loader) Reset() {
	l.next = 0
}

// Next assembles the next batch into a contiguous tensor.
//
// Returns:
//   - inference.Batch: The next batch.
//   - error: io.EOF after the last batch, or a packing error.
func (l *Loader) Next() (inference.Batch, error) {
	if l.next >= l.subset.Len() {
		return inference.Batch{}, io.EOF
	}

	end := l.next + l.batchSize
	if end > l.subset.Len() {
		end = l.subset.Len()
	}

	images := make([][]float32, 0, end-l.next)
	labels := make([]int, 0, end-l.next)
	for i := l.next; i < end; i++ {
		s := l.subset.At(i)
		images = append(images, s.Image)
		labels = append(labels, s.Label)
	}
	l.next = end

	return inference.NewBatch(images, labels, l.subset.Shape())
}

// Batches drains a fresh pass over the subset into memory.
//
// Arguments:
//   - subset: The subset to batch.
//   - batchSize: The number of samples per batch.
//
// Returns:
//   - []inference.Batch: Every batch in order.
//   - error: An error if the loader cannot be created or a batch fails to pack.
func Batches(subset *Subset, batchSize int) ([]inference.Batch, error) {
	loader, err := NewLoader(subset, batchSize)
	if err != nil {
		return nil, err
	}

	out := make([]inference.Batch, 0, loader.NumBatches())
	for {
		b, err := loader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
}
