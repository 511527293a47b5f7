package benchmark

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/models/native"
	"github.com/nvr-ai/classbench/preprocess"
	"github.com/nvr-ai/classbench/quantize"
)

var nativeShape = [3]int{3, 8, 8}

func syntheticSplits(t testing.TB) (test, train *dataset.Subset) {
	t.Helper()
	test, err := dataset.Synthetic(dataset.DefaultLimit, nativeShape, dataset.SyntheticClasses, 1)
	require.NoError(t, err)
	train, err = dataset.Synthetic(64, nativeShape, dataset.SyntheticClasses, 2)
	require.NoError(t, err)
	return test, train
}

// nativeLoader serves every name with a nearest-centroid network fitted on train, so accuracy is
// well above chance and the head is a linear layer that quantizes.
func nativeLoader(t testing.TB, train *dataset.Subset) models.Loader {
	return func(_ context.Context, name models.Name) (inference.Classifier, error) {
		batches, err := dataset.Batches(train, 16)
		require.NoError(t, err)
		return native.NewCentroid(string(name), nativeShape, batches, dataset.SyntheticClasses)
	}
}

func accuracies(results []Result, model string) map[int]float64 {
	out := make(map[int]float64)
	for _, r := range results {
		if r.Model == model {
			out[r.BatchSize] = r.Accuracy
		}
	}
	return out
}

func TestAccuracyIsConstantAcrossBatchSizes(t *testing.T) {
	test, train := syntheticSplits(t)
	net, err := native.NewMLP("resnet50", nativeShape, []int{32}, 10, 7)
	require.NoError(t, err)
	defer net.Close()

	centroid, err := nativeLoader(t, train)(context.Background(), models.ModelNameResNet18)
	require.NoError(t, err)
	defer centroid.Close()

	r, err := NewRunner(NewRunnerArgs{})
	require.NoError(t, err)
	require.NoError(t, r.Sweep(context.Background(), test, []models.Entry{
		{Name: models.ModelNameResNet18, Status: models.StatusLoaded, Classifier: centroid},
		{Name: models.ModelNameResNet50, Status: models.StatusLoaded, Classifier: net},
	}))

	results := r.Store().Results()
	require.Len(t, results, 2*len(DefaultBatchSizes))
	for _, res := range results {
		assert.Equal(t, dataset.DefaultLimit, res.Samples, "%s at batch %d", res.Model, res.BatchSize)
		assert.Equal(t, inference.RuntimeNative, res.Runtime)
	}

	for _, model := range []string{"resnet18", "resnet50"} {
		acc := accuracies(results, model)
		require.Len(t, acc, len(DefaultBatchSizes))
		for _, b := range DefaultBatchSizes {
			assert.Equal(t, acc[1], acc[b], "%s accuracy at batch %d", model, b)
		}
	}
	assert.Greater(t, accuracies(results, "resnet18")[1], 50.0)
}

func TestResNet18NativeEndToEnd(t *testing.T) {
	test, train := syntheticSplits(t)
	clf, err := nativeLoader(t, train)(context.Background(), models.ModelNameResNet18)
	require.NoError(t, err)
	defer clf.Close()

	r, err := NewRunner(NewRunnerArgs{BatchSizes: []int{1, 32}})
	require.NoError(t, err)
	require.NoError(t, r.Sweep(context.Background(), test, []models.Entry{
		{Name: models.ModelNameResNet18, Status: models.StatusLoaded, Classifier: clf},
	}))

	results := r.Store().Results()
	require.Len(t, results, 2)
	assert.Equal(t, 200, results[0].Samples)
	assert.Equal(t, 200, results[1].Samples)
	assert.Equal(t, results[0].Accuracy, results[1].Accuracy)
}

func TestResNet18ONNXEndToEnd(t *testing.T) {
	dir := os.Getenv("CLASSBENCH_MODELS_DIR")
	if dir == "" {
		t.Skip("CLASSBENCH_MODELS_DIR not set")
	}
	if _, err := os.Stat(filepath.Join(dir, "resnet18.onnx")); err != nil {
		t.Skipf("resnet18.onnx not available: %v", err)
	}
	if _, err := os.Stat(providers.GetSharedLibPath()); err != nil {
		t.Skipf("onnxruntime library not available: %v", err)
	}
	defer providers.Shutdown()

	test, err := dataset.Synthetic(dataset.DefaultLimit, [3]int{preprocess.Channels, 224, 224}, dataset.SyntheticClasses, 1)
	require.NoError(t, err)

	entries, err := models.DefaultRegistry(dir, providers.DefaultConfig()).Load(context.Background(), []models.Name{models.ModelNameResNet18})
	require.NoError(t, err)
	defer models.CloseAll(entries)
	require.True(t, entries[0].Loaded())

	r, err := NewRunner(NewRunnerArgs{BatchSizes: []int{1, 32}})
	require.NoError(t, err)
	require.NoError(t, r.Sweep(context.Background(), test, entries))

	results := r.Store().Results()
	require.Len(t, results, 2)
	assert.Equal(t, 200, results[0].Samples)
	assert.Equal(t, 200, results[1].Samples)
	assert.Equal(t, results[0].Accuracy, results[1].Accuracy)
}

func TestQuantSweepAndRederivation(t *testing.T) {
	test, train := syntheticSplits(t)
	net, err := native.NewMLP("mobilenet_v2", nativeShape, []int{32}, 10, 11)
	require.NoError(t, err)
	defer net.Close()

	entries := []models.Entry{{Name: models.ModelNameMobileNetV2, Status: models.StatusLoaded, Classifier: net}}
	calib, err := NewCalibration(train, DefaultQuantBatchSize)
	require.NoError(t, err)

	r, err := NewRunner(NewRunnerArgs{})
	require.NoError(t, err)

	variants, err := DeriveVariants(context.Background(), entries, quantize.Kinds, calib)
	require.NoError(t, err)
	require.NoError(t, r.QuantSweep(context.Background(), test, variants))
	CloseVariants(variants)

	quant := r.Store().QuantResults()
	require.Len(t, quant, 2)
	assert.Equal(t, quantize.KindDynamic, quant[0].Kind)
	assert.Equal(t, quantize.KindStatic, quant[1].Kind)
	for _, q := range quant {
		assert.Equal(t, DefaultQuantBatchSize, q.BatchSize)
		assert.Equal(t, 200, q.Samples)
		assert.True(t, q.Applied)
	}
	assert.False(t, quant[0].Calibrated)
	assert.True(t, quant[1].Calibrated)

	// The original is untouched, so deriving again reproduces the dynamic measurement.
	again, err := DeriveVariants(context.Background(), entries, []quantize.Kind{quantize.KindDynamic}, quantize.Calibration{})
	require.NoError(t, err)
	require.NoError(t, r.QuantSweep(context.Background(), test, again))
	CloseVariants(again)

	quant = r.Store().QuantResults()
	require.Len(t, quant, 3)
	assert.Equal(t, quant[0].Accuracy, quant[2].Accuracy)
}

func TestPipelineRun(t *testing.T) {
	test, train := syntheticSplits(t)
	calib, err := NewCalibration(train, DefaultQuantBatchSize)
	require.NoError(t, err)

	registry := models.DefaultRegistry(t.TempDir(), providers.DefaultConfig())
	registry.Register(models.ModelNameResNet18, nativeLoader(t, train))
	registry.Register(models.ModelNameVGG16, func(_ context.Context, name models.Name) (inference.Classifier, error) {
		return native.NewMLP(string(name), nativeShape, []int{16}, 10, 3)
	})

	runner, err := NewRunner(NewRunnerArgs{BatchSizes: []int{1, 8}})
	require.NoError(t, err)

	entries, err := Pipeline{
		Registry:    registry,
		Names:       models.Architectures,
		Test:        test,
		Calibration: calib,
		Kinds:       quantize.Kinds,
		Runner:      runner,
	}.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, len(models.Architectures))
	statuses := map[models.Name]models.Status{}
	for _, e := range entries {
		statuses[e.Name] = e.Status
	}
	assert.Equal(t, models.StatusLoaded, statuses[models.ModelNameResNet18])
	assert.Equal(t, models.StatusLoaded, statuses[models.ModelNameVGG16])
	assert.Equal(t, models.StatusSkippedUnavailable, statuses[models.ModelNameViTB16])

	assert.Len(t, runner.Store().Results(), 2*2)
	quant := runner.Store().QuantResults()
	require.Len(t, quant, 2*2)
	assert.Equal(t, "resnet18", quant[0].Model)
	assert.Equal(t, "vgg16", quant[3].Model)
}

func TestPipelineWithNothingLoaded(t *testing.T) {
	test, _ := syntheticSplits(t)
	runner, err := NewRunner(NewRunnerArgs{})
	require.NoError(t, err)

	entries, err := Pipeline{
		Registry: models.NewRegistry(nil),
		Names:    models.Architectures,
		Test:     test,
		Kinds:    quantize.Kinds,
		Runner:   runner,
	}.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, len(models.Architectures))
	assert.Empty(t, runner.Store().Results())
}

func TestQuantizedAgreement(t *testing.T) {
	test, train := syntheticSplits(t)
	net, err := native.NewMLP("densenet121", nativeShape, []int{64}, 10, 13)
	require.NoError(t, err)
	defer net.Close()

	calib, err := NewCalibration(train, 8)
	require.NoError(t, err)
	batches, err := dataset.Batches(test, 8)
	require.NoError(t, err)

	predict := func(clf inference.Classifier) []int {
		var out []int
		for _, b := range batches {
			scores, err := clf.Classify(context.Background(), b.Images)
			require.NoError(t, err)
			preds, err := inference.Predictions(scores)
			require.NoError(t, err)
			out = append(out, preds...)
		}
		return out
	}

	reference := predict(net)
	for _, kind := range quantize.Kinds {
		v, err := quantize.Derive(context.Background(), net, kind, calib)
		require.NoError(t, err)

		agree := 0
		for i, p := range predict(v.Classifier) {
			if p == reference[i] {
				agree++
			}
		}
		assert.GreaterOrEqual(t, agree*2, len(reference), "%s agreement", kind)
		require.NoError(t, v.Close())
	}
}

// BenchmarkQuantizedVsFloat compares float and dynamic int8 evaluation at batch size 8.
func BenchmarkQuantizedVsFloat(b *testing.B) {
	test, err := dataset.Synthetic(dataset.DefaultLimit, [3]int{3, 16, 16}, dataset.SyntheticClasses, 1)
	require.NoError(b, err)
	net, err := native.NewMLP("resnet18", [3]int{3, 16, 16}, []int{256, 128}, 10, 1)
	require.NoError(b, err)
	defer net.Close()

	variant, err := quantize.Derive(context.Background(), net, quantize.KindDynamic, quantize.Calibration{})
	require.NoError(b, err)
	defer variant.Close()

	for _, tc := range []struct {
		name string
		clf  inference.Classifier
	}{
		{"float", net},
		{"dynamic", variant.Classifier},
	} {
		b.Run(tc.name, func(b *testing.B) {
			loader := newLoader(b, test, DefaultQuantBatchSize)
			for i := 0; i < b.N; i++ {
				if _, err := Evaluate(context.Background(), tc.clf, loader, EvaluateOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
