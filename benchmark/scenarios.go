package benchmark

import (
	"fmt"

	"github.com/nvr-ai/classbench/quantize"
)

// Scenario is one planned evaluation.
type Scenario struct {
	Model     string `json:"model"`
	BatchSize int    `json:"batch_size"`
	// Kind is empty for the full-precision model.
	Kind       quantize.Kind `json:"kind,omitempty"`
	WarmupRuns int           `json:"warmup_runs"`
}

// Name returns a stable identifier such as "resnet18/b8" or "resnet18/dynamic/b8".
func (s Scenario) Name() string {
	if s.Kind == "" {
		return fmt.Sprintf("%s/b%d", s.Model, s.BatchSize)
	}
	return fmt.Sprintf("%s/%s/b%d", s.Model, s.Kind, s.BatchSize)
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder for a full-precision scenario at batch size 1.
func NewScenarioBuilder(model string) *ScenarioBuilder {
	return &ScenarioBuilder{scenario: Scenario{Model: model, BatchSize: 1}}
}

// WithBatchSize sets the batch size.
func (sb *ScenarioBuilder) WithBatchSize(batchSize int) *ScenarioBuilder {
	sb.scenario.BatchSize = batchSize
	return sb
}

// WithKind marks the scenario as measuring a quantized variant.
func (sb *ScenarioBuilder) WithKind(kind quantize.Kind) *ScenarioBuilder {
	sb.scenario.Kind = kind
	return sb
}

// WithWarmupRuns sets the number of untimed warmup passes.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// SweepScenarios plans the full-precision sweep: models in order, then batch sizes in order.
func SweepScenarios(models []string, batchSizes []int, warmups int) []Scenario {
	out := make([]Scenario, 0, len(models)*len(batchSizes))
	for _, m := range models {
		for _, b := range batchSizes {
			out = append(out, NewScenarioBuilder(m).WithBatchSize(b).WithWarmupRuns(warmups).Build())
		}
	}
	return out
}

// QuantScenarios plans the quantized sweep: models in order, then kinds in order, at one batch size.
func QuantScenarios(models []string, kinds []quantize.Kind, batchSize, warmups int) []Scenario {
	out := make([]Scenario, 0, len(models)*len(kinds))
	for _, m := range models {
		for _, k := range kinds {
			out = append(out, NewScenarioBuilder(m).WithKind(k).WithBatchSize(batchSize).WithWarmupRuns(warmups).Build())
		}
	}
	return out
}
