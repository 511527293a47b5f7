package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/quantize"
)

func predictions(t *testing.T, clf inference.Classifier, batches []inference.Batch) []int {
	t.Helper()
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

func agreement(a, b []int) float64 {
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

func TestQuantizedPredictionsAgreeWithFloat(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{32}, 10, 3)
	require.NoError(t, err)
	defer net.Close()

	eval := testBatches(t, 200, 8, 1)
	calib := quantize.Calibration{Batches: testBatches(t, 64, 8, 2)}
	reference := predictions(t, net, eval)

	for _, kind := range quantize.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			clf, report, err := net.Quantize(context.Background(), kind, calib)
			require.NoError(t, err)

			assert.True(t, report.Applied)
			assert.Equal(t, 2, report.QuantizedLayers)
			assert.Equal(t, 2, report.SkippedLayers, "flatten and relu stay float")
			assert.Equal(t, kind == quantize.KindStatic, report.Calibrated)

			_, precision := inference.Describe(clf)
			assert.Equal(t, inference.PrecisionINT8, precision)
			assert.GreaterOrEqual(t, agreement(reference, predictions(t, clf, eval)), 0.5)
		})
	}
}

func TestQuantizeLeavesOriginalUntouched(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{16}, 10, 5)
	require.NoError(t, err)
	defer net.Close()

	eval := testBatches(t, 40, 8, 1)
	before := predictions(t, net, eval)
	weight := append([]float32(nil), net.Layers()[1].(*Linear).Weight...)

	_, _, err = net.Quantize(context.Background(), quantize.KindStatic, quantize.Calibration{Batches: eval})
	require.NoError(t, err)

	assert.Equal(t, weight, net.Layers()[1].(*Linear).Weight)
	assert.Equal(t, before, predictions(t, net, eval))
}

func TestDynamicDerivationIsRepeatable(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{16}, 10, 5)
	require.NoError(t, err)
	defer net.Close()

	eval := testBatches(t, 40, 8, 1)
	first, err := quantize.Derive(context.Background(), net, quantize.KindDynamic, quantize.Calibration{})
	require.NoError(t, err)
	second, err := quantize.Derive(context.Background(), net, quantize.KindDynamic, quantize.Calibration{})
	require.NoError(t, err)

	assert.Equal(t, predictions(t, first.Classifier, eval), predictions(t, second.Classifier, eval))
}

func TestStaticWithoutCalibration(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{16}, 10, 5)
	require.NoError(t, err)
	defer net.Close()

	clf, report, err := net.Quantize(context.Background(), quantize.KindStatic, quantize.Calibration{})
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.False(t, report.Calibrated)
	assert.NotEmpty(t, report.Note)

	// The uncalibrated variant still runs.
	_ = predictions(t, clf, testBatches(t, 8, 8, 1))
}

func TestQuantizeWithoutLinearLayersIsUnsupported(t *testing.T) {
	net, err := NewNetwork("pool", testShape, GlobalAvgPool{})
	require.NoError(t, err)

	_, _, err = net.Quantize(context.Background(), quantize.KindDynamic, quantize.Calibration{})
	assert.ErrorIs(t, err, quantize.ErrUnsupported)

	v, err := quantize.Derive(context.Background(), net, quantize.KindDynamic, quantize.Calibration{})
	require.NoError(t, err)
	assert.False(t, v.Report.Applied)
}
