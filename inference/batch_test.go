package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewBatch(t *testing.T) {
	images := [][]float32{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
	}
	batch, err := NewBatch(images, []int{3, 1}, [3]int{1, 2, 2})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, batch.Images.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, batch.Images.Data())
	assert.Equal(t, []int{3, 1}, batch.Labels)

	// The batch owns its backing; mutating the source must not leak through.
	images[0][0] = 42
	assert.Equal(t, float32(1), batch.Images.Data().([]float32)[0])
}

func TestNewBatchErrors(t *testing.T) {
	_, err := NewBatch(nil, nil, [3]int{3, 2, 2})
	assert.Error(t, err)

	_, err = NewBatch([][]float32{{1}}, []int{0, 1}, [3]int{1, 1, 1})
	assert.Error(t, err)

	_, err = NewBatch([][]float32{{1, 2}}, []int{0}, [3]int{1, 1, 1})
	assert.Error(t, err)
}

func TestPredictions(t *testing.T) {
	scores := tensor.New(tensor.WithShape(3, 4), tensor.WithBacking([]float32{
		0.1, 0.9, 0.0, 0.0,
		2.0, -1.0, 1.5, 0.0,
		0.0, 0.0, 0.0, 3.0,
	}))

	preds, err := Predictions(scores)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 3}, preds)
}

func TestPredictionsSingleRow(t *testing.T) {
	scores := tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float32{0.2, 0.1, 0.7}))

	preds, err := Predictions(scores)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, preds)
}

func TestPredictionsRejectsWrongRank(t *testing.T) {
	_, err := Predictions(tensor.New(tensor.WithShape(4), tensor.WithBacking([]float32{1, 2, 3, 4})))
	assert.Error(t, err)

	_, err = Predictions(nil)
	assert.Error(t, err)
}
