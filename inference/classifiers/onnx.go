// Package classifiers - ONNX Runtime image classifiers.
package classifiers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/quantize"
)

// ONNXArgs describes an exported classifier graph.
type ONNXArgs struct {
	// Name is the model name reported in results.
	Name string `json:"name"     yaml:"name"`
	// Path is the .onnx file.
	Path string `json:"path"     yaml:"path"`
	// Provider selects the execution provider.
	Provider providers.Config `json:"provider" yaml:"provider"`
	// Precision is the numeric precision of the graph; empty means FP32.
	Precision inference.Precision `json:"precision" yaml:"precision"`
}

// ONNX is a classifier backed by an ONNX Runtime session with a dynamic batch dimension.
type ONNX struct {
	args    ONNXArgs
	session *ort.DynamicAdvancedSession
	input   ort.InputOutputInfo
	output  ort.InputOutputInfo
	backend providers.ProviderBackend
	mu      sync.Mutex
}

// NewONNX opens an exported classifier.
//
// The graph must take one float32 (N, C, H, W) input and produce one float32 (N, K) output;
// their names are discovered from the file.
//
// Arguments:
//   - args: The classifier arguments.
//
// Returns:
//   - *ONNX: The classifier.
//   - error: An error wrapping fs.ErrNotExist when the model or runtime library is missing, or
//     any session creation failure.
func NewONNX(args ONNXArgs) (*ONNX, error) {
	if _, err := os.Stat(args.Path); err != nil {
		return nil, errors.Wrapf(err, "model file for %s", args.Name)
	}
	if args.Precision == "" {
		args.Precision = inference.PrecisionFP32
	}

	if err := providers.Initialize(args.Provider); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input/output info of %s", args.Path)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, errors.Errorf("%s has %d inputs and %d outputs, want 1 and at least 1", args.Path, len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, errors.Errorf("%s input %q has rank %d, want (N, C, H, W)", args.Path, inputs[0].Name, len(inputs[0].Dimensions))
	}

	options, backend, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		args.Path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", args.Path)
	}

	slog.Info("loaded onnx classifier",
		"model", args.Name, "path", args.Path, "backend", backend,
		"input", inputs[0].Name, "input_shape", inputs[0].Dimensions, "output", outputs[0].Name)

	return &ONNX{
		args:    args,
		session: session,
		input:   inputs[0],
		output:  outputs[0],
		backend: backend,
	}, nil
}

func (c *ONNX) Name() string { return c.args.Name }

func (c *ONNX) Runtime() inference.Runtime { return inference.RuntimeONNX }

func (c *ONNX) Precision() inference.Precision { return c.args.Precision }

// Backend returns the execution provider the session runs on.
func (c *ONNX) Backend() providers.ProviderBackend { return c.backend }

// InputShape returns the per-sample (C, H, W) the graph declares; dynamic dimensions are -1.
func (c *ONNX) InputShape() [3]int64 {
	d := c.input.Dimensions
	return [3]int64{d[1], d[2], d[3]}
}

// Classify runs the session over images shaped (N, C, H, W).
func (c *ONNX) Classify(ctx context.Context, images *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if images == nil || images.Dims() != 4 {
		return nil, errors.New("input must be a (N, C, H, W) tensor")
	}
	data, ok := images.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input must be float32, got %T", images.Data())
	}

	shape := images.Shape()
	for i, want := range c.InputShape() {
		if want > 0 && int64(shape[i+1]) != want {
			return nil, errors.Errorf("%s expects input dimension %d to be %d, got %d", c.args.Name, i+1, want, shape[i+1])
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, errors.Errorf("%s is closed", c.args.Name)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(shape[0]), int64(shape[1]), int64(shape[2]), int64(shape[3])), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer input.Destroy()

	// A nil output is allocated by the runtime, which avoids knowing K up front.
	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrapf(err, "running %s", c.args.Name)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("%s output %q is %T, want float32 tensor", c.args.Name, c.output.Name, outputs[0])
	}

	dims := out.GetShape()
	if len(dims) != 2 || dims[0] != int64(shape[0]) {
		return nil, errors.Errorf("%s output shape %v, want (%d, K)", c.args.Name, dims, shape[0])
	}

	scores := make([]float32, len(out.GetData()))
	copy(scores, out.GetData())
	return tensor.New(tensor.WithShape(int(dims[0]), int(dims[1])), tensor.WithBacking(scores)), nil
}

// Close destroys the session. It is safe to call more than once.
func (c *ONNX) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}

// CompanionPath returns the path of the pre-quantized graph for a kind: <dir>/<name>.<kind>.onnx.
func CompanionPath(modelPath string, kind quantize.Kind) string {
	ext := filepath.Ext(modelPath)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(modelPath, ext), kind, ext)
}

// Quantize opens the pre-quantized companion graph for kind.
//
// ONNX graphs are quantized offline by ONNX Runtime's tooling; when no companion file exists
// the result is quantize.ErrUnsupported. Calibration data is not consulted: a static companion
// graph already carries its activation ranges.
func (c *ONNX) Quantize(_ context.Context, kind quantize.Kind, _ quantize.Calibration) (inference.Classifier, quantize.Report, error) {
	path := CompanionPath(c.args.Path, kind)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, quantize.Report{}, errors.Wrapf(quantize.ErrUnsupported, "no %s companion graph at %s", kind, path)
		}
		return nil, quantize.Report{}, errors.Wrapf(err, "checking %s", path)
	}

	args := c.args
	args.Path = path
	args.Precision = inference.PrecisionINT8

	variant, err := NewONNX(args)
	if err != nil {
		return nil, quantize.Report{}, err
	}

	return variant, quantize.Report{
		Applied:    true,
		Calibrated: kind == quantize.KindStatic,
		Note:       "pre-quantized graph " + filepath.Base(path),
	}, nil
}
