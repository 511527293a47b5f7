// Package benchmark - Accuracy and latency measurement of classifiers over a fixed subset.
package benchmark

import (
	"runtime"
	"time"

	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/profiler"
	"github.com/nvr-ai/classbench/quantize"
)

// Result is the measurement of one model at one batch size.
type Result struct {
	RunID     string              `json:"run_id"`
	Model     string              `json:"model"`
	Runtime   inference.Runtime   `json:"runtime"`
	Precision inference.Precision `json:"precision"`
	BatchSize int                 `json:"batch_size"`
	// Accuracy is top-1 accuracy in percent.
	Accuracy float64       `json:"accuracy"`
	Duration time.Duration `json:"duration"`
	Samples  int           `json:"samples"`
	Correct  int           `json:"correct"`
	// Latency is per-batch inference time, excluding batch assembly.
	Latency   profiler.LatencyStats `json:"latency"`
	Memory    MemoryMetrics         `json:"memory"`
	Timestamp time.Time             `json:"timestamp"`
}

// QuantResult is the measurement of one quantized variant.
type QuantResult struct {
	RunID           string                `json:"run_id"`
	Model           string                `json:"model"`
	Kind            quantize.Kind         `json:"kind"`
	BatchSize       int                   `json:"batch_size"`
	Accuracy        float64               `json:"accuracy"`
	Duration        time.Duration         `json:"duration"`
	Samples         int                   `json:"samples"`
	Correct         int                   `json:"correct"`
	Applied         bool                  `json:"applied"`
	Calibrated      bool                  `json:"calibrated"`
	QuantizedLayers int                   `json:"quantized_layers"`
	SkippedLayers   int                   `json:"skipped_layers"`
	Latency         profiler.LatencyStats `json:"latency"`
	Memory          MemoryMetrics         `json:"memory"`
	Timestamp       time.Time             `json:"timestamp"`
}

// MemoryMetrics captures Go heap activity during an evaluation.
// Memory owned by native runtimes is not visible here.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
	// Peak is sampled in the background while the evaluation runs.
	Peak profiler.Peaks `json:"peak"`
}

func readMemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

func memoryDelta(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
		HeapSysBytes:    end.HeapSys,
	}
}
