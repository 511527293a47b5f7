package native

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/quantize"
)

// QuantizedNetwork executes Linear layers in int8 and every other layer in float32.
type QuantizedNetwork struct {
	name   string
	input  [3]int
	steps  []step
	shapes [][]int
}

type step struct {
	float Layer
	q     *quantLinear
}

// quantLinear holds int8 weights with one scale per output channel.
type quantLinear struct {
	in, out int
	weight  []int8
	scales  []float32
	bias    []float32
	// actScale is fixed for static quantization; zero selects per-row dynamic scales.
	actScale float32
}

func (l *quantLinear) forward(x []float32, n int) []float32 {
	xq := make([]int8, len(x))
	xScales := make([]float32, n)

	if l.actScale > 0 {
		quantize.QuantizeInto(xq, x, l.actScale)
		for i := range xScales {
			xScales[i] = l.actScale
		}
	} else {
		for i := 0; i < n; i++ {
			row := x[i*l.in : (i+1)*l.in]
			xScales[i] = quantize.SymmetricScale(quantize.MaxAbs(row))
			quantize.QuantizeInto(xq[i*l.in:(i+1)*l.in], row, xScales[i])
		}
	}

	out := make([]float32, n*l.out)
	quantize.Linear(out, xq, xScales, l.weight, l.scales, l.bias, n, l.in, l.out)
	return out
}

// Quantize derives an int8 copy of the network. The receiver is not modified.
//
// Static quantization runs the float network eagerly over the calibration batches and fixes
// each Linear input scale from a MinMax observer; without batches the observers keep their
// default range and the report is marked uncalibrated.
func (n *Network) Quantize(ctx context.Context, kind quantize.Kind, calib quantize.Calibration) (inference.Classifier, quantize.Report, error) {
	var report quantize.Report

	observers := make([]quantize.MinMaxObserver, len(n.layers))
	if kind == quantize.KindStatic {
		for _, b := range calib.Batches {
			if err := ctx.Err(); err != nil {
				return nil, report, err
			}
			if b.Size() == 0 {
				continue
			}
			batch, err := checkInput(b.Images, n.input)
			if err != nil {
				return nil, report, errors.Wrap(err, "calibration batch")
			}
			data, ok := b.Images.Data().([]float32)
			if !ok {
				return nil, report, errors.Errorf("unexpected calibration data type %T", b.Images.Data())
			}
			n.forward(data, batch, func(layer int, in []float32) {
				if _, ok := n.layers[layer].(*Linear); ok {
					observers[layer].Observe(in)
				}
			})
		}
	}

	steps := make([]step, len(n.layers))
	calibrated := kind == quantize.KindStatic
	for i, l := range n.layers {
		lin, ok := l.(*Linear)
		if !ok {
			steps[i] = step{float: l}
			report.SkippedLayers++
			continue
		}

		weight, scales := quantize.QuantizeRows(lin.Weight, lin.Out, lin.In)
		q := &quantLinear{
			in:     lin.In,
			out:    lin.Out,
			weight: weight,
			scales: scales,
			bias:   append([]float32(nil), lin.Bias...),
		}
		if kind == quantize.KindStatic {
			q.actScale = observers[i].Scale()
			calibrated = calibrated && observers[i].Seen()
		}
		steps[i] = step{q: q}
		report.QuantizedLayers++
	}

	if report.QuantizedLayers == 0 {
		return nil, report, errors.Wrapf(quantize.ErrUnsupported, "%s has no linear layers", n.name)
	}

	report.Applied = true
	report.Calibrated = calibrated
	if kind == quantize.KindStatic && !calibrated {
		report.Note = "activation ranges use the observer default"
	}

	return &QuantizedNetwork{
		name:   n.name,
		input:  n.input,
		steps:  steps,
		shapes: n.shapes,
	}, report, nil
}

func (q *QuantizedNetwork) Name() string { return q.name }

func (q *QuantizedNetwork) Runtime() inference.Runtime { return inference.RuntimeNative }

func (q *QuantizedNetwork) Precision() inference.Precision { return inference.PrecisionINT8 }

// Classify runs the int8 network over images shaped (N, C, H, W).
func (q *QuantizedNetwork) Classify(ctx context.Context, images *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := checkInput(images, q.input)
	if err != nil {
		return nil, err
	}
	x, ok := images.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected input type %T", images.Data())
	}

	for i, s := range q.steps {
		if s.q != nil {
			x = s.q.forward(x, batch)
			continue
		}
		x = s.float.Forward(x, batch, q.shapes[i])
	}

	classes := q.shapes[len(q.shapes)-1][0]
	return tensor.New(tensor.WithShape(batch, classes), tensor.WithBacking(x)), nil
}

func (q *QuantizedNetwork) Close() error {
	return nil
}
