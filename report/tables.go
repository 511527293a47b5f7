// Package report - Tables, charts and summaries of benchmark results.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nvr-ai/classbench/benchmark"
	"github.com/nvr-ai/classbench/inference"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/quantize"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func formatAccuracy(a float64) string {
	return fmt.Sprintf("%.2f%%", a)
}

// WriteSweepTable renders one row per (model, batch size) measurement.
func WriteSweepTable(w io.Writer, results []benchmark.Result) {
	var data [][]string
	for _, r := range results {
		data = append(data, []string{
			r.Model,
			strconv.Itoa(r.BatchSize),
			formatDuration(r.Duration),
			formatAccuracy(r.Accuracy),
			strconv.Itoa(r.Samples),
			string(r.Runtime),
			string(r.Precision),
		})
	}

	table := newTable(w, []string{"MODEL", "BATCH", "TIME", "ACCURACY", "SAMPLES", "RUNTIME", "PRECISION"})
	table.AppendBulk(data)
	table.Render()
}

// WriteQuantTable renders one row per quantized variant.
func WriteQuantTable(w io.Writer, results []benchmark.QuantResult) {
	var data [][]string
	for _, r := range results {
		applied := "yes"
		if !r.Applied {
			applied = "no (original)"
		}
		calibrated := "-"
		if r.Kind == quantize.KindStatic && r.Applied {
			calibrated = strconv.FormatBool(r.Calibrated)
		}
		data = append(data, []string{
			r.Model,
			string(r.Kind),
			strconv.Itoa(r.BatchSize),
			formatDuration(r.Duration),
			formatAccuracy(r.Accuracy),
			applied,
			calibrated,
		})
	}

	table := newTable(w, []string{"MODEL", "QUANTIZATION", "BATCH", "TIME", "ACCURACY", "APPLIED", "CALIBRATED"})
	table.AppendBulk(data)
	table.Render()
}

// backendReporter is implemented by classifiers bound to an execution provider.
type backendReporter interface {
	Backend() providers.ProviderBackend
}

// placement returns the runtime and device a loaded classifier executes on.
// Classifiers without a provider run in the Go process, on the CPU.
func placement(clf inference.Classifier) (string, string) {
	rt, _ := inference.Describe(clf)
	if b, ok := clf.(backendReporter); ok {
		return string(rt), string(b.Backend())
	}
	return string(rt), string(providers.CPUProviderBackend)
}

// WriteStatusTable renders the load status of every requested model.
func WriteStatusTable(w io.Writer, entries []models.Entry) {
	var data [][]string
	for _, e := range entries {
		reason := e.Reason
		if reason == "" {
			reason = "-"
		}
		rt, device := "-", "-"
		if e.Loaded() {
			rt, device = placement(e.Classifier)
		}
		data = append(data, []string{string(e.Name), string(e.Status), rt, device, reason})
	}

	table := newTable(w, []string{"MODEL", "STATUS", "RUNTIME", "DEVICE", "REASON"})
	table.SetColWidth(80)
	table.AppendBulk(data)
	table.Render()
}
