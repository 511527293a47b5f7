// Package providers - CoreML based execution provider.
package providers

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML flags, mirrored from coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly           uint32 = 0x001
	coreMLFlagEnableOnSubgraph     uint32 = 0x002
	coreMLFlagOnlyEnableDeviceANE  uint32 = 0x004
	coreMLFlagOnlyAllowStaticShape uint32 = 0x008
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	UseCPUOnly bool `json:"useCPUOnly"           yaml:"useCPUOnly"`
	// Enable CoreML EP to run on a subgraph in the body of a control flow operator.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs"    yaml:"enableOnSubgraphs"`
	// Only enable the CoreML EP for Apple devices with an ANE.
	OnlyNeuralEngine bool `json:"onlyNeuralEngine"     yaml:"onlyNeuralEngine"`
	// Only allow the CoreML EP to take nodes with inputs that have static shapes. Batch sweeps
	// change the leading dimension, so this is off by default.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
}

// Flags packs the options into the bit field expected by AppendExecutionProviderCoreML.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.UseCPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.OnlyNeuralEngine {
		flags |= coreMLFlagOnlyEnableDeviceANE
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticShape
	}
	return flags
}
