// Package providers - Execution provider selection for ONNX Runtime sessions.
package providers

import (
	"fmt"
	"strings"
)

// ProviderBackend represents the compute device an ONNX Runtime session executes on.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default ONNX Runtime CPU kernels.
	CPUProviderBackend ProviderBackend = "cpu"
)

// Backends lists every backend accepted by configuration, in fallback order.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// Config selects the compute device once for a whole run.
type Config struct {
	// Backend is the requested execution provider.
	Backend ProviderBackend `json:"backend"      yaml:"backend"`
	// DeviceID is the accelerator ordinal: the CUDA device, or the OpenVINO GPU/NPU index.
	DeviceID int `json:"device_id"    yaml:"device_id"`
	// DeviceType is the OpenVINO hardware (CPU, GPU, NPU); empty means CPU.
	DeviceType string `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	// LibraryPath overrides the platform default onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// IntraOpThreads bounds node-level parallelism; 0 lets the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// DefaultConfig returns a CPU configuration.
func DefaultConfig() Config {
	return Config{Backend: CPUProviderBackend}
}

// ParseBackend resolves a backend name case-insensitively.
//
// Arguments:
//   - name: The backend name, e.g. "cuda".
//
// Returns:
//   - ProviderBackend: The matching backend.
//   - error: An error if the name is not a known backend.
func ParseBackend(name string) (ProviderBackend, error) {
	for _, b := range Backends {
		if strings.EqualFold(string(b), strings.TrimSpace(name)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown provider backend: %q", name)
}

// Validate checks the configuration for unsupported values.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("device_id must be >= 0, got %d", c.DeviceID)
	}
	if _, err := OpenVINODevice(c); err != nil {
		return err
	}
	if c.IntraOpThreads < 0 {
		return fmt.Errorf("intra_op_threads must be >= 0, got %d", c.IntraOpThreads)
	}
	return nil
}

// IsAccelerator reports whether the backend targets hardware other than the general CPU kernels.
func (b ProviderBackend) IsAccelerator() bool {
	return b != CPUProviderBackend
}
