package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/dataset"
	"github.com/nvr-ai/classbench/inference"
)

var testShape = [3]int{3, 4, 4}

func testBatches(t *testing.T, n, batchSize int, seed int64) []inference.Batch {
	t.Helper()
	subset, err := dataset.Synthetic(n, testShape, dataset.SyntheticClasses, seed)
	require.NoError(t, err)
	batches, err := dataset.Batches(subset, batchSize)
	require.NoError(t, err)
	return batches
}

func TestNewNetworkValidatesShapes(t *testing.T) {
	lin, err := NewLinear(5, 2, make([]float32, 10), make([]float32, 2))
	require.NoError(t, err)

	_, err = NewNetwork("bad", testShape, Flatten{}, lin)
	assert.Error(t, err, "48 inputs do not feed a 5-wide layer")

	_, err = NewNetwork("bad", testShape, ReLU{})
	assert.Error(t, err, "output must be a vector")

	_, err = NewNetwork("bad", testShape)
	assert.Error(t, err)
}

func TestNewLinearValidatesSizes(t *testing.T) {
	_, err := NewLinear(2, 2, make([]float32, 3), make([]float32, 2))
	assert.Error(t, err)
	_, err = NewLinear(2, 2, make([]float32, 4), make([]float32, 1))
	assert.Error(t, err)
	_, err = NewLinear(0, 2, nil, make([]float32, 2))
	assert.Error(t, err)
}

func TestGraphMatchesEagerForward(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{16, 8}, 10, 42)
	require.NoError(t, err)
	defer net.Close()

	for _, b := range testBatches(t, 20, 8, 1) {
		scores, err := net.Classify(context.Background(), b.Images)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{b.Size(), 10}, scores.Shape())

		want := net.Forward(b.Images.Data().([]float32), b.Size())
		assert.InDeltaSlice(t, want, scores.Data().([]float32), 1e-4)
	}
}

func TestGlobalAvgPoolGraph(t *testing.T) {
	net, err := NewCentroid("centroid", testShape, testBatches(t, 50, 10, 2), dataset.SyntheticClasses)
	require.NoError(t, err)
	defer net.Close()

	b := testBatches(t, 5, 5, 1)[0]
	scores, err := net.Classify(context.Background(), b.Images)
	require.NoError(t, err)

	want := net.Forward(b.Images.Data().([]float32), b.Size())
	assert.InDeltaSlice(t, want, scores.Data().([]float32), 1e-4)
}

func TestGlobalAvgPoolGraphKeepsChannelOrder(t *testing.T) {
	c := testShape[0]
	identity := make([]float32, c*c)
	for i := 0; i < c; i++ {
		identity[i*c+i] = 1
	}
	lin, err := NewLinear(c, c, identity, make([]float32, c))
	require.NoError(t, err)
	net, err := NewNetwork("pool", testShape, GlobalAvgPool{}, lin)
	require.NoError(t, err)
	defer net.Close()

	b := testBatches(t, 5, 5, 3)[0]
	images := b.Images.Data().([]float32)
	scores, err := net.Classify(context.Background(), b.Images)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{5, c}, scores.Shape())

	plane := testShape[1] * testShape[2]
	got := scores.Data().([]float32)
	for i := 0; i < 5*c; i++ {
		var sum float32
		for _, v := range images[i*plane : (i+1)*plane] {
			sum += v
		}
		assert.InDelta(t, sum/float32(plane), got[i], 1e-4, "sample %d channel %d", i/c, i%c)
	}
}

func TestCentroidSeparatesSyntheticClasses(t *testing.T) {
	net, err := NewCentroid("centroid", testShape, testBatches(t, 100, 16, 2), dataset.SyntheticClasses)
	require.NoError(t, err)
	defer net.Close()

	correct, total := 0, 0
	for _, b := range testBatches(t, 100, 16, 1) {
		scores, err := net.Classify(context.Background(), b.Images)
		require.NoError(t, err)
		preds, err := inference.Predictions(scores)
		require.NoError(t, err)
		for i, p := range preds {
			if p == b.Labels[i] {
				correct++
			}
			total++
		}
	}
	assert.Greater(t, float64(correct)/float64(total), 0.5)
}

func TestNewCentroidErrors(t *testing.T) {
	_, err := NewCentroid("c", testShape, nil, 10)
	assert.Error(t, err)

	_, err = NewCentroid("c", testShape, testBatches(t, 10, 10, 1), 3)
	assert.Error(t, err, "labels beyond the class count")
}

func TestClassifyReusesPlans(t *testing.T) {
	net, err := NewMLP("mlp", testShape, []int{4}, 10, 1)
	require.NoError(t, err)

	batches := testBatches(t, 12, 8, 1)
	for i := 0; i < 2; i++ {
		for _, b := range batches {
			_, err := net.Classify(context.Background(), b.Images)
			require.NoError(t, err)
		}
	}
	assert.Len(t, net.plans, 2, "one plan per batch size")

	require.NoError(t, net.Close())
	assert.Empty(t, net.plans)
}

func TestClassifyRejectsBadInput(t *testing.T) {
	net, err := NewMLP("mlp", testShape, nil, 10, 1)
	require.NoError(t, err)
	defer net.Close()

	wrong := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float32, 12)))
	_, err = net.Classify(context.Background(), wrong)
	assert.Error(t, err)

	_, err = net.Classify(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = net.Classify(ctx, testBatches(t, 1, 1, 1)[0].Images)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMLPIsDeterministic(t *testing.T) {
	a, err := NewMLP("a", testShape, []int{8}, 10, 9)
	require.NoError(t, err)
	b, err := NewMLP("b", testShape, []int{8}, 10, 9)
	require.NoError(t, err)

	x := testBatches(t, 4, 4, 1)[0].Images.Data().([]float32)
	assert.Equal(t, a.Forward(x, 4), b.Forward(x, 4))
	assert.Equal(t, inference.RuntimeNative, a.Runtime())
	assert.Equal(t, inference.PrecisionFP32, a.Precision())
}
