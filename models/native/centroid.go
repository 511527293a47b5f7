package native

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/classbench/inference"
)

// NewCentroid fits a nearest-centroid classifier over channel-pooled features.
//
// The network is GlobalAvgPool followed by a Linear layer whose row c is the mean pooled feature
// μc of class c and whose bias is -½‖μc‖², so the arg-max score picks the closest centroid.
// Classes absent from the batches get a zero centroid.
//
// Arguments:
//   - name: The model name.
//   - input: The per-sample input shape (C, H, W).
//   - batches: The labeled batches to fit on.
//   - classes: The number of classes.
//
// Returns:
//   - *Network: The fitted network.
//   - error: An error if the batches are empty or mis-shaped, or a label is out of range.
func NewCentroid(name string, input [3]int, batches []inference.Batch, classes int) (*Network, error) {
	if classes <= 0 {
		return nil, errors.Errorf("classes must be positive, got %d", classes)
	}

	pool := GlobalAvgPool{}
	shape := []int{input[0], input[1], input[2]}
	c := input[0]

	sums := make([]float32, classes*c)
	counts := make([]int, classes)
	for _, b := range batches {
		n, err := checkInput(b.Images, input)
		if err != nil {
			return nil, err
		}
		data, ok := b.Images.Data().([]float32)
		if !ok {
			return nil, errors.Errorf("unexpected batch data type %T", b.Images.Data())
		}

		features := pool.Forward(data, n, shape)
		for i, label := range b.Labels {
			if label < 0 || label >= classes {
				return nil, errors.Errorf("label %d outside [0,%d)", label, classes)
			}
			counts[label]++
			for j := 0; j < c; j++ {
				sums[label*c+j] += features[i*c+j]
			}
		}
	}

	total := 0
	weight := make([]float32, classes*c)
	bias := make([]float32, classes)
	for k := 0; k < classes; k++ {
		total += counts[k]
		if counts[k] == 0 {
			continue
		}
		var norm float32
		for j := 0; j < c; j++ {
			mu := sums[k*c+j] / float32(counts[k])
			weight[k*c+j] = mu
			norm += mu * mu
		}
		bias[k] = -norm / 2
	}
	if total == 0 {
		return nil, errors.New("centroid fit needs at least one labeled sample")
	}

	head, err := NewLinear(c, classes, weight, bias)
	if err != nil {
		return nil, err
	}
	return NewNetwork(name, input, pool, head)
}
