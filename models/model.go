// Package models - The benchmarked classifier architectures and their load status.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/inference"
)

// ErrUnavailable is returned by a loader when a model cannot be provided in this environment.
var ErrUnavailable = errors.New("model unavailable")

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameResNet18 is the 18-layer residual network.
	ModelNameResNet18 Name = "resnet18"
	// ModelNameResNet50 is the 50-layer residual network.
	ModelNameResNet50 Name = "resnet50"
	// ModelNameVGG16 is the 16-layer VGG network.
	ModelNameVGG16 Name = "vgg16"
	// ModelNameMobileNetV2 is MobileNetV2.
	ModelNameMobileNetV2 Name = "mobilenet_v2"
	// ModelNameDenseNet121 is DenseNet-121.
	ModelNameDenseNet121 Name = "densenet121"
	// ModelNameViTB16 is the base vision transformer with 16x16 patches.
	ModelNameViTB16 Name = "vit_b_16"
)

// Architectures lists the benchmarked models in evaluation order.
var Architectures = []Name{
	ModelNameResNet18,
	ModelNameResNet50,
	ModelNameVGG16,
	ModelNameMobileNetV2,
	ModelNameDenseNet121,
	ModelNameViTB16,
}

// IsArchitecture reports whether name is one of the benchmarked architectures.
func IsArchitecture(name Name) bool {
	for _, a := range Architectures {
		if a == name {
			return true
		}
	}
	return false
}

// Status is the outcome of resolving a model.
type Status string

const (
	// StatusLoaded means the classifier is ready.
	StatusLoaded Status = "loaded"
	// StatusSkippedUnavailable means the model could not be provided and is excluded from the run.
	StatusSkippedUnavailable Status = "skipped-unavailable"
)

// Entry is one resolved model.
type Entry struct {
	Name   Name   `json:"name"`
	Status Status `json:"status"`
	// Reason explains a skip.
	Reason string `json:"reason,omitempty"`
	// Classifier is set only when Status is StatusLoaded.
	Classifier inference.Classifier `json:"-"`
}

// Loaded reports whether the entry holds a usable classifier.
func (e Entry) Loaded() bool {
	return e.Status == StatusLoaded && e.Classifier != nil
}

// LoadedEntries returns the loaded entries, in order.
func LoadedEntries(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Loaded() {
			out = append(out, e)
		}
	}
	return out
}

// CloseAll closes every loaded classifier and returns the first error.
func CloseAll(entries []Entry) error {
	var first error
	for _, e := range entries {
		if !e.Loaded() {
			continue
		}
		if err := e.Classifier.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing %s", e.Name)
		}
	}
	return first
}
