package models

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/inference/classifiers"
	"github.com/nvr-ai/classbench/inference/providers"
)

// Loader instantiates a classifier for a model name in inference mode.
//
// Loaders return an error wrapping ErrUnavailable (or fs.ErrNotExist) when the model cannot be
// provided; any other error aborts the run.
type Loader func(ctx context.Context, name Name) (inference.Classifier, error)

// Registry maps model names to loaders.
type Registry struct {
	loaders map[Name]Loader
	// fallback serves names without a dedicated loader.
	fallback Loader
}

// NewRegistry creates a registry whose unregistered architectures resolve through fallback.
// A nil fallback makes unregistered names unavailable.
func NewRegistry(fallback Loader) *Registry {
	return &Registry{loaders: make(map[Name]Loader), fallback: fallback}
}

// Register binds a loader to a name, replacing any previous binding.
func (r *Registry) Register(name Name, loader Loader) {
	r.loaders[name] = loader
}

// Load resolves names in order.
//
// Every requested name yields exactly one entry. Unknown or unavailable models are returned with
// StatusSkippedUnavailable and logged as a warning.
//
// Arguments:
//   - ctx: The context.
//   - names: The models to resolve, in evaluation order.
//
// Returns:
//   - []Entry: One entry per name.
//   - error: The first loader failure that is not an availability problem; classifiers
//     already loaded are closed.
func (r *Registry) Load(ctx context.Context, names []Name) ([]Entry, error) {
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			CloseAll(entries)
			return nil, err
		}

		entry, err := r.load(ctx, name)
		if err != nil {
			CloseAll(entries)
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Registry) load(ctx context.Context, name Name) (Entry, error) {
	loader, ok := r.loaders[name]
	if !ok {
		if !IsArchitecture(name) {
			return skipped(name, "unknown model name"), nil
		}
		loader = r.fallback
	}
	if loader == nil {
		return skipped(name, "no loader registered"), nil
	}

	clf, err := loader(ctx, name)
	switch {
	case err == nil:
		slog.Info("model loaded", "model", name)
		return Entry{Name: name, Status: StatusLoaded, Classifier: clf}, nil
	case errors.Is(err, ErrUnavailable), errors.Is(err, fs.ErrNotExist):
		return skipped(name, err.Error()), nil
	default:
		return Entry{}, errors.Wrapf(err, "loading %s", name)
	}
}

func skipped(name Name, reason string) Entry {
	slog.Warn("model skipped", "model", name, "status", StatusSkippedUnavailable, "reason", reason)
	return Entry{Name: name, Status: StatusSkippedUnavailable, Reason: reason}
}

// ONNXLoader loads <dir>/<name>.onnx through ONNX Runtime.
//
// Arguments:
//   - dir: The directory holding exported models.
//   - provider: The execution provider configuration shared by every session.
//
// Returns:
//   - Loader: The loader.
func ONNXLoader(dir string, provider providers.Config) Loader {
	return func(_ context.Context, name Name) (inference.Classifier, error) {
		return classifiers.NewONNX(classifiers.ONNXArgs{
			Name:     string(name),
			Path:     filepath.Join(dir, string(name)+".onnx"),
			Provider: provider,
		})
	}
}

// DefaultRegistry serves every architecture from exported ONNX files in dir.
func DefaultRegistry(dir string, provider providers.Config) *Registry {
	return NewRegistry(ONNXLoader(dir, provider))
}
