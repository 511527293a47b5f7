package native

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// NewMLP builds a multilayer perceptron with He-initialized weights from a fixed seed.
//
// The input is flattened, passed through one Linear+ReLU stage per hidden width and projected
// onto classes scores. Equal arguments always produce identical weights.
//
// Arguments:
//   - name: The model name.
//   - input: The per-sample input shape (C, H, W).
//   - hidden: The hidden layer widths.
//   - classes: The number of output classes.
//   - seed: The weight initialization seed.
//
// Returns:
//   - *Network: The network.
//   - error: An error if a size is not positive.
func NewMLP(name string, input [3]int, hidden []int, classes int, seed int64) (*Network, error) {
	if classes <= 0 {
		return nil, errors.Errorf("classes must be positive, got %d", classes)
	}

	rng := rand.New(rand.NewSource(seed))
	layers := []Layer{Flatten{}}
	in := input[0] * input[1] * input[2]

	for _, width := range hidden {
		l, err := randomLinear(rng, in, width)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l, ReLU{})
		in = width
	}

	head, err := randomLinear(rng, in, classes)
	if err != nil {
		return nil, err
	}
	layers = append(layers, head)

	return NewNetwork(name, input, layers...)
}

func randomLinear(rng *rand.Rand, in, out int) (*Linear, error) {
	std := math.Sqrt(2 / float64(in))
	weight := make([]float32, in*out)
	for i := range weight {
		weight[i] = float32(rng.NormFloat64() * std)
	}
	bias := make([]float32, out)
	for i := range bias {
		bias[i] = float32(rng.NormFloat64() * 0.01)
	}
	return NewLinear(in, out, weight, bias)
}
