package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		name    string
		want    ProviderBackend
		wantErr bool
	}{
		{name: "cpu", want: CPUProviderBackend},
		{name: "CUDA", want: CUDAProviderBackend},
		{name: " coreml ", want: CoreMLProviderBackend},
		{name: "openvino", want: OpenVINOProviderBackend},
		{name: "tpu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackend(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Backend: "quantum"}.Validate())
	assert.Error(t, Config{Backend: CUDAProviderBackend, DeviceID: -1}.Validate())
	assert.Error(t, Config{Backend: CPUProviderBackend, IntraOpThreads: -2}.Validate())
	assert.Error(t, Config{Backend: OpenVINOProviderBackend, DeviceType: "FPGA"}.Validate())
}

func TestOpenVINODevice(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "default", cfg: Config{}, want: "CPU"},
		{name: "cpu ignores ordinal", cfg: Config{DeviceType: "cpu", DeviceID: 3}, want: "CPU"},
		{name: "gpu", cfg: Config{DeviceType: "GPU"}, want: "GPU.0"},
		{name: "second gpu", cfg: Config{DeviceType: "gpu", DeviceID: 1}, want: "GPU.1"},
		{name: "npu", cfg: Config{DeviceType: "NPU", DeviceID: 2}, want: "NPU.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OpenVINODevice(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := OpenVINODevice(Config{DeviceType: "FPGA"})
	assert.Error(t, err)
}

func TestIsAccelerator(t *testing.T) {
	assert.False(t, CPUProviderBackend.IsAccelerator())
	assert.True(t, CUDAProviderBackend.IsAccelerator())
	assert.True(t, CoreMLProviderBackend.IsAccelerator())
}

func TestCoreMLFlags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, coreMLFlagUseCPUOnly|coreMLFlagOnlyAllowStaticShape,
		CoreMLOptions{UseCPUOnly: true, RequireStaticInputShapes: true}.Flags())
}

func TestOpenVINOToMap(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ToMap())
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ToMap())
}

func TestGetSharedLibPathOverride(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", GetSharedLibPath())
}
