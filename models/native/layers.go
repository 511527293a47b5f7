package native

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer is one stage of a native network.
//
// Shapes passed to a layer exclude the batch dimension.
type Layer interface {
	// Kind names the layer type in reports and logs.
	Kind() string
	// OutShape returns the per-sample output shape for a per-sample input shape.
	OutShape(in []int) ([]int, error)
	// Forward evaluates the layer eagerly over n samples packed row-major in x.
	Forward(x []float32, n int, in []int) []float32
	// Node appends the layer to an expression graph; name prefixes any parameter nodes.
	Node(g *G.ExprGraph, x *G.Node, name string) (*G.Node, error)
}

func volume(shape []int) int {
	v := 1
	for _, d := range shape {
		v *= d
	}
	return v
}

// Flatten collapses every per-sample dimension into one.
type Flatten struct{}

func (Flatten) Kind() string { return "flatten" }

func (Flatten) OutShape(in []int) ([]int, error) {
	return []int{volume(in)}, nil
}

func (Flatten) Forward(x []float32, _ int, _ []int) []float32 {
	return x
}

func (Flatten) Node(_ *G.ExprGraph, x *G.Node, _ string) (*G.Node, error) {
	shape := x.Shape()
	return G.Reshape(x, tensor.Shape{shape[0], volume(shape[1:])})
}

// GlobalAvgPool averages each channel of a (C, H, W) input down to one value.
type GlobalAvgPool struct{}

func (GlobalAvgPool) Kind() string { return "global_avg_pool" }

func (GlobalAvgPool) OutShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, errors.Errorf("global average pooling needs a (C, H, W) input, got %v", in)
	}
	return []int{in[0]}, nil
}

func (GlobalAvgPool) Forward(x []float32, n int, in []int) []float32 {
	c, plane := in[0], in[1]*in[2]
	out := make([]float32, n*c)
	for i := 0; i < n*c; i++ {
		var sum float32
		for _, v := range x[i*plane : (i+1)*plane] {
			sum += v
		}
		out[i] = sum / float32(plane)
	}
	return out
}

// Node flattens each plane and reduces a single axis; multi-axis Mean scrambles channels.
func (GlobalAvgPool) Node(_ *G.ExprGraph, x *G.Node, _ string) (*G.Node, error) {
	s := x.Shape()
	if len(s) != 4 {
		return nil, errors.Errorf("global average pooling needs a (N, C, H, W) node, got %v", s)
	}
	planes, err := G.Reshape(x, tensor.Shape{s[0], s[1], s[2] * s[3]})
	if err != nil {
		return nil, errors.Wrap(err, "flattening planes")
	}
	return G.Mean(planes, 2)
}

// ReLU clamps negative activations to zero.
type ReLU struct{}

func (ReLU) Kind() string { return "relu" }

func (ReLU) OutShape(in []int) ([]int, error) {
	return in, nil
}

func (ReLU) Forward(x []float32, _ int, _ []int) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

func (ReLU) Node(_ *G.ExprGraph, x *G.Node, _ string) (*G.Node, error) {
	return G.Rectify(x)
}

// Linear is a fully connected layer computing x·Wᵀ + b.
type Linear struct {
	In, Out int
	// Weight is row-major (Out, In).
	Weight []float32
	// Bias has Out entries.
	Bias []float32

	transposed []float32
}

// NewLinear creates a fully connected layer, validating the parameter sizes.
func NewLinear(in, out int, weight, bias []float32) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, errors.Errorf("linear layer needs positive sizes, got %dx%d", out, in)
	}
	if len(weight) != in*out {
		return nil, errors.Errorf("linear weight holds %d values, want %d", len(weight), in*out)
	}
	if len(bias) != out {
		return nil, errors.Errorf("linear bias holds %d values, want %d", len(bias), out)
	}

	// The graph multiplies (N, In) by (In, Out).
	transposed := make([]float32, in*out)
	for o := 0; o < out; o++ {
		for k := 0; k < in; k++ {
			transposed[k*out+o] = weight[o*in+k]
		}
	}

	return &Linear{In: in, Out: out, Weight: weight, Bias: bias, transposed: transposed}, nil
}

func (l *Linear) Kind() string { return "linear" }

func (l *Linear) OutShape(in []int) ([]int, error) {
	if len(in) != 1 || in[0] != l.In {
		return nil, errors.Errorf("linear layer expects [%d] input, got %v", l.In, in)
	}
	return []int{l.Out}, nil
}

func (l *Linear) Forward(x []float32, n int, _ []int) []float32 {
	out := make([]float32, n*l.Out)
	for i := 0; i < n; i++ {
		row := x[i*l.In : (i+1)*l.In]
		for o := 0; o < l.Out; o++ {
			w := l.Weight[o*l.In : (o+1)*l.In]
			v := l.Bias[o]
			for k, xv := range row {
				v += xv * w[k]
			}
			out[i*l.Out+o] = v
		}
	}
	return out
}

func (l *Linear) Node(g *G.ExprGraph, x *G.Node, name string) (*G.Node, error) {
	w := G.NewMatrix(g, tensor.Float32,
		G.WithShape(l.In, l.Out),
		G.WithValue(tensor.New(tensor.WithShape(l.In, l.Out), tensor.WithBacking(l.transposed))),
		G.WithName(name+".weight"))
	b := G.NewMatrix(g, tensor.Float32,
		G.WithShape(1, l.Out),
		G.WithValue(tensor.New(tensor.WithShape(1, l.Out), tensor.WithBacking(l.Bias))),
		G.WithName(name+".bias"))

	xw, err := G.Mul(x, w)
	if err != nil {
		return nil, errors.Wrap(err, "linear matmul")
	}
	return G.BroadcastAdd(xw, b, nil, []byte{0})
}
