// Package providers - OpenVINO based execution provider.
package providers

import (
	"fmt"
	"strings"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU) at runtime.
	DeviceType string `json:"deviceType"   yaml:"deviceType"`
	// Supported precisions for HW {CPU:FP32, GPU:[FP32, FP16, ACCURACY], NPU:FP16}.
	Precision string `json:"precision"    yaml:"precision"`
	// Overrides the accelerator default number of threads.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
}

// ToMap renders the options as the string map consumed by AppendExecutionProviderOpenVINO.
func (o OpenVINOOptions) ToMap() map[string]string {
	out := map[string]string{}
	if o.DeviceType != "" {
		out["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		out["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		out["num_of_threads"] = fmt.Sprintf("%d", o.NumOfThreads)
	}
	return out
}

// OpenVINODevice returns the device_type string for a configuration: "CPU", or the hardware
// with its DeviceID suffix such as "GPU.1".
func OpenVINODevice(cfg Config) (string, error) {
	switch t := strings.ToUpper(strings.TrimSpace(cfg.DeviceType)); t {
	case "", "CPU":
		return "CPU", nil
	case "GPU", "NPU":
		return fmt.Sprintf("%s.%d", t, cfg.DeviceID), nil
	default:
		return "", fmt.Errorf("unknown OpenVINO device type: %q", cfg.DeviceType)
	}
}
