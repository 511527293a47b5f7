package quantize

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/inference"
)

// ErrUnsupported is returned by a Quantizable classifier that cannot produce the requested kind.
var ErrUnsupported = errors.New("quantization unsupported")

// Report describes what a derivation actually did.
type Report struct {
	// Applied is false when the variant is the unmodified original.
	Applied bool `json:"applied"`
	// Calibrated is true when static activation ranges came from calibration data.
	Calibrated bool `json:"calibrated"`
	// QuantizedLayers counts layers executed in int8.
	QuantizedLayers int `json:"quantized_layers"`
	// SkippedLayers counts layers left in float.
	SkippedLayers int `json:"skipped_layers"`
	// Note is a human-readable remark about the derivation.
	Note string `json:"note,omitempty"`
}

// Calibration holds the batches static quantization observes to fix activation ranges.
type Calibration struct {
	Batches []inference.Batch
}

// Empty reports whether the calibration set holds no samples.
func (c Calibration) Empty() bool {
	for _, b := range c.Batches {
		if b.Size() > 0 {
			return false
		}
	}
	return true
}

// Quantizable is implemented by classifiers that can derive an 8-bit copy of themselves.
// The receiver must not be modified.
type Quantizable interface {
	Quantize(ctx context.Context, kind Kind, calib Calibration) (inference.Classifier, Report, error)
}

// Variant is a quantized copy of a model.
type Variant struct {
	Model      string
	Kind       Kind
	Classifier inference.Classifier
	Report     Report
}

// Close releases the variant classifier. The original model is left open.
func (v Variant) Close() error {
	if v.Classifier == nil {
		return nil
	}
	return v.Classifier.Close()
}

// Derive produces a quantized copy of a classifier.
//
// Classifiers that cannot be quantized yield a no-op variant wrapping the original, with
// Report.Applied set to false; this is logged, never an error.
//
// Arguments:
//   - ctx: The context.
//   - original: The full-precision classifier; it is not modified.
//   - kind: The quantization kind.
//   - calib: The calibration batches, used by static quantization.
//
// Returns:
//   - Variant: The derived variant.
//   - error: An error if the classifier supports quantization but the derivation failed.
func Derive(ctx context.Context, original inference.Classifier, kind Kind, calib Calibration) (Variant, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return Variant{}, err
	}
	if err := ctx.Err(); err != nil {
		return Variant{}, err
	}

	variant := Variant{Model: original.Name(), Kind: kind}

	q, ok := original.(Quantizable)
	if !ok {
		return noop(variant, original, "runtime does not support in-process quantization"), nil
	}

	clf, report, err := q.Quantize(ctx, kind, calib)
	if errors.Is(err, ErrUnsupported) {
		return noop(variant, original, err.Error()), nil
	}
	if err != nil {
		return Variant{}, errors.Wrapf(err, "deriving %s variant of %s", kind, original.Name())
	}

	if kind == KindStatic && !report.Calibrated {
		slog.Warn("static quantization ran without calibration data, activation ranges use the default",
			"model", original.Name(), "range", DefaultRange)
	}

	slog.Debug("derived quantized variant",
		"model", original.Name(), "kind", kind,
		"quantized_layers", report.QuantizedLayers, "skipped_layers", report.SkippedLayers)

	variant.Classifier = clf
	variant.Report = report
	return variant, nil
}

func noop(variant Variant, original inference.Classifier, reason string) Variant {
	slog.Warn("quantization not applied, benchmarking the original model",
		"model", variant.Model, "kind", variant.Kind, "reason", reason)

	variant.Classifier = passthrough{original}
	variant.Report = Report{Note: reason}
	return variant
}

// passthrough exposes the original classifier without taking ownership of it.
type passthrough struct {
	inner inference.Classifier
}

func (p passthrough) Name() string {
	return p.inner.Name()
}

func (p passthrough) Classify(ctx context.Context, images *tensor.Dense) (*tensor.Dense, error) {
	return p.inner.Classify(ctx, images)
}

func (p passthrough) Runtime() inference.Runtime {
	r, _ := inference.Describe(p.inner)
	return r
}

func (p passthrough) Precision() inference.Precision {
	_, pr := inference.Describe(p.inner)
	return pr
}

func (passthrough) Close() error {
	return nil
}
