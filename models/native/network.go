// Package native - In-process classifier networks built on gorgonia.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/inference"
)

// Network is a feed-forward float32 classifier.
//
// Classify compiles one expression graph per batch size on first use and reuses it after that.
type Network struct {
	name   string
	input  [3]int
	layers []Layer
	// shapes[i] is the per-sample input shape of layers[i]; the last entry is the output shape.
	shapes [][]int

	mu    sync.Mutex
	plans map[int]*plan
}

type plan struct {
	graph  *G.ExprGraph
	input  *G.Node
	output *G.Node
	vm     G.VM
}

// NewNetwork assembles layers into a classifier.
//
// Arguments:
//   - name: The model name reported in results.
//   - input: The per-sample input shape (C, H, W).
//   - layers: The layers, applied in order; the last must produce a flat class-score vector.
//
// Returns:
//   - *Network: The network.
//   - error: An error if the layer shapes do not chain.
func NewNetwork(name string, input [3]int, layers ...Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, errors.New("network needs at least one layer")
	}

	shapes := make([][]int, 0, len(layers)+1)
	shape := []int{input[0], input[1], input[2]}
	shapes = append(shapes, shape)
	for i, l := range layers {
		next, err := l.OutShape(shape)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d (%s)", i, l.Kind())
		}
		shape = next
		shapes = append(shapes, shape)
	}
	if len(shape) != 1 {
		return nil, errors.Errorf("network output must be a score vector, got shape %v", shape)
	}

	return &Network{
		name:   name,
		input:  input,
		layers: layers,
		shapes: shapes,
		plans:  make(map[int]*plan),
	}, nil
}

func (n *Network) Name() string { return n.name }

func (n *Network) Runtime() inference.Runtime { return inference.RuntimeNative }

func (n *Network) Precision() inference.Precision { return inference.PrecisionFP32 }

// Classes returns the number of class scores the network produces.
func (n *Network) Classes() int {
	return n.shapes[len(n.shapes)-1][0]
}

// Layers returns the layers of the network.
func (n *Network) Layers() []Layer {
	return n.layers
}

// Classify runs the compiled graph for the batch size of images.
func (n *Network) Classify(ctx context.Context, images *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := checkInput(images, n.input)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	p, err := n.plan(batch)
	if err != nil {
		return nil, err
	}
	defer p.vm.Reset()

	if err := G.Let(p.input, images); err != nil {
		return nil, errors.Wrap(err, "binding input")
	}
	if err := p.vm.RunAll(); err != nil {
		return nil, errors.Wrapf(err, "running %s", n.name)
	}

	data, ok := p.output.Value().Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", p.output.Value().Data())
	}
	scores := make([]float32, len(data))
	copy(scores, data)

	return tensor.New(tensor.WithShape(batch, n.Classes()), tensor.WithBacking(scores)), nil
}

// plan returns the compiled graph for a batch size, building it on first use.
func (n *Network) plan(batch int) (*plan, error) {
	if p, ok := n.plans[batch]; ok {
		return p, nil
	}

	g := G.NewGraph()
	input := G.NewTensor(g, tensor.Float32, 4,
		G.WithShape(batch, n.input[0], n.input[1], n.input[2]),
		G.WithName("input"))

	x := input
	for i, l := range n.layers {
		next, err := l.Node(g, x, fmt.Sprintf("%s.%d", l.Kind(), i))
		if err != nil {
			return nil, errors.Wrapf(err, "building layer %d (%s)", i, l.Kind())
		}
		x = next
	}

	p := &plan{graph: g, input: input, output: x, vm: G.NewTapeMachine(g)}
	n.plans[batch] = p

	slog.Debug("compiled native graph", "model", n.name, "batch_size", batch, "nodes", len(g.AllNodes()))
	return p, nil
}

// Forward evaluates the network eagerly, without a graph.
//
// Arguments:
//   - x: n samples of the input shape, packed row-major.
//   - batch: The number of samples.
//
// Returns:
//   - []float32: The (batch, classes) scores.
func (n *Network) Forward(x []float32, batch int) []float32 {
	return n.forward(x, batch, nil)
}

// forward runs every layer eagerly, handing each layer's input to observe when it is set.
func (n *Network) forward(x []float32, batch int, observe func(layer int, in []float32)) []float32 {
	for i, l := range n.layers {
		if observe != nil {
			observe(i, x)
		}
		x = l.Forward(x, batch, n.shapes[i])
	}
	return x
}

// Close releases every compiled graph.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for batch, p := range n.plans {
		if closer, ok := p.vm.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				return errors.Wrapf(err, "closing graph for batch size %d", batch)
			}
		}
		delete(n.plans, batch)
	}
	return nil
}

// checkInput validates a (N, C, H, W) float32 batch and returns N.
func checkInput(images *tensor.Dense, input [3]int) (int, error) {
	if images == nil {
		return 0, errors.New("nil input batch")
	}
	shape := images.Shape()
	if len(shape) != 4 || shape[1] != input[0] || shape[2] != input[1] || shape[3] != input[2] {
		return 0, errors.Errorf("input shape %v does not match (N, %d, %d, %d)", shape, input[0], input[1], input[2])
	}
	if images.Dtype() != tensor.Float32 {
		return 0, errors.Errorf("input must be float32, got %v", images.Dtype())
	}
	return shape[0], nil
}
