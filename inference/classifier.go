// Package inference - Classifier contract shared by every model runtime.
package inference

import (
	"context"

	"gorgonia.org/tensor"
)

// Classifier is the capability every benchmarked model exposes: a batch of images in,
// a batch of per-class scores out.
//
// Implementations are full-precision ONNX Runtime sessions, Go-native networks and their
// quantized derivatives. Classifiers are used from a single goroutine.
type Classifier interface {
	// Name returns the model identifier used in result records.
	Name() string
	// Classify runs a forward pass over images shaped (N, C, H, W) and returns scores shaped (N, K).
	Classify(ctx context.Context, images *tensor.Dense) (*tensor.Dense, error)
	// Close releases runtime resources held by the classifier.
	Close() error
}

// Describer is implemented by classifiers that can report which runtime and precision they use.
type Describer interface {
	Runtime() Runtime
	Precision() Precision
}

// Describe returns the runtime and precision of a classifier, falling back to unknown/FP32.
func Describe(c Classifier) (Runtime, Precision) {
	if d, ok := c.(Describer); ok {
		return d.Runtime(), d.Precision()
	}
	return RuntimeUnknown, PrecisionFP32
}
