package providers

import (
	"log/slog"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// NewSessionOptions creates session options bound to the configured execution provider.
//
// Execution Providers (EPs) let ONNX Runtime leverage specialized hardware. If the requested
// accelerator cannot be appended (driver missing, runtime built without it) the options fall
// back to the CPU kernels and a warning is logged; the returned backend reflects what will
// actually execute.
//
// **Note: the caller must Destroy the returned options.**
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The configured session options.
//   - ProviderBackend: The backend the session will run on.
//   - error: An error if the options could not be created.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, ProviderBackend, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", errors.Wrap(err, "error creating ORT session options")
	}

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			options.Destroy()
			return nil, "", errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		options.Destroy()
		return nil, "", errors.Wrap(err, "error setting graph optimization level")
	}

	backend := cfg.Backend
	if backend == "" {
		backend = CPUProviderBackend
	}

	if err := appendProvider(options, backend, cfg); err != nil {
		slog.Warn("execution provider unavailable, falling back to cpu",
			"backend", backend, "error", err)
		// A failed append leaves the options usable with the default CPU provider.
		backend = CPUProviderBackend
	}

	return options, backend, nil
}

func appendProvider(options *ort.SessionOptions, backend ProviderBackend, cfg Config) error {
	switch backend {
	case CPUProviderBackend:
		return nil
	case CUDAProviderBackend:
		cuda, err := CUDAOptions{DeviceID: cfg.DeviceID, DoCopyInDefaultStream: true}.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		defer cuda.Destroy()
		return options.AppendExecutionProviderCUDA(cuda)
	case CoreMLProviderBackend:
		return options.AppendExecutionProviderCoreML(CoreMLOptions{}.Flags())
	case OpenVINOProviderBackend:
		device, err := OpenVINODevice(cfg)
		if err != nil {
			return err
		}
		return options.AppendExecutionProviderOpenVINO(OpenVINOOptions{DeviceType: device}.ToMap())
	default:
		return errors.Errorf("unsupported provider backend: %s", backend)
	}
}
