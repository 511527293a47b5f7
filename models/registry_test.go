package models

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/inference/providers"
)

type fakeClassifier struct {
	name   string
	closed bool
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(context.Context, *tensor.Dense) (*tensor.Dense, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClassifier) Close() error {
	f.closed = true
	return nil
}

func TestRegistryStatuses(t *testing.T) {
	r := NewRegistry(func(_ context.Context, name Name) (inference.Classifier, error) {
		return nil, errors.Wrapf(ErrUnavailable, "%s not exported", name)
	})
	r.Register(ModelNameResNet18, func(_ context.Context, name Name) (inference.Classifier, error) {
		return &fakeClassifier{name: string(name)}, nil
	})

	entries, err := r.Load(context.Background(), []Name{ModelNameResNet18, ModelNameVGG16, "alexnet"})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, StatusLoaded, entries[0].Status)
	assert.True(t, entries[0].Loaded())
	assert.Equal(t, "resnet18", entries[0].Classifier.Name())

	assert.Equal(t, StatusSkippedUnavailable, entries[1].Status)
	assert.Contains(t, entries[1].Reason, "not exported")
	assert.Nil(t, entries[1].Classifier)

	assert.Equal(t, StatusSkippedUnavailable, entries[2].Status)
	assert.Equal(t, "unknown model name", entries[2].Reason)

	loaded := LoadedEntries(entries)
	require.Len(t, loaded, 1)
	require.NoError(t, CloseAll(entries))
	assert.True(t, loaded[0].Classifier.(*fakeClassifier).closed)
}

func TestRegistryFatalErrorClosesLoaded(t *testing.T) {
	first := &fakeClassifier{name: "resnet18"}
	r := NewRegistry(nil)
	r.Register(ModelNameResNet18, func(context.Context, Name) (inference.Classifier, error) {
		return first, nil
	})
	r.Register(ModelNameResNet50, func(context.Context, Name) (inference.Classifier, error) {
		return nil, errors.New("corrupt graph")
	})

	_, err := r.Load(context.Background(), []Name{ModelNameResNet18, ModelNameResNet50})
	assert.Error(t, err)
	assert.True(t, first.closed)
}

func TestRegistryWithoutFallback(t *testing.T) {
	entries, err := NewRegistry(nil).Load(context.Background(), []Name{ModelNameDenseNet121})
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedUnavailable, entries[0].Status)
}

func TestDefaultRegistrySkipsMissingFiles(t *testing.T) {
	r := DefaultRegistry(t.TempDir(), providers.DefaultConfig())

	entries, err := r.Load(context.Background(), Architectures)
	require.NoError(t, err)
	require.Len(t, entries, len(Architectures))
	for i, e := range entries {
		assert.Equal(t, Architectures[i], e.Name)
		assert.Equal(t, StatusSkippedUnavailable, e.Status)
		assert.NotEmpty(t, e.Reason)
	}
	assert.Empty(t, LoadedEntries(entries))
}

func TestRegistryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRegistry(nil).Load(ctx, Architectures)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsArchitecture(t *testing.T) {
	assert.True(t, IsArchitecture(ModelNameViTB16))
	assert.False(t, IsArchitecture("yolov4"))
}

func TestLabelMap(t *testing.T) {
	m := LabelMap{3: {281, 282, 285}}

	assert.True(t, m.Accepts(3, 282))
	assert.False(t, m.Accepts(3, 3))
	assert.True(t, m.Accepts(5, 5), "unmapped labels match identically")
	assert.True(t, LabelMap(nil).Accepts(1, 1))
	assert.NoError(t, m.Validate())

	assert.Error(t, LabelMap{1: {}}.Validate())
	assert.Error(t, LabelMap{1: {-1}}.Validate())
}
