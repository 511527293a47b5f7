package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/classbench/benchmark"
	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/report"
)

func runCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full benchmark pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Output.Dir = output
			}

			e, err := newEnv(cfg, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := providers.Shutdown(); err != nil {
					slog.Warn("onnxruntime shutdown failed", "error", err)
				}
			}()

			calib, err := e.calibration()
			if err != nil {
				return err
			}

			runner, err := benchmark.NewRunner(benchmark.NewRunnerArgs{
				BatchSizes:     cfg.Benchmark.BatchSizes,
				QuantBatchSize: cfg.Benchmark.QuantBatchSize,
				WarmupRuns:     cfg.Benchmark.WarmupRuns,
				LabelMap:       cfg.Models.LabelMap,
			})
			if err != nil {
				return err
			}

			entries, err := benchmark.Pipeline{
				Registry:    e.registry(),
				Names:       cfg.Models.Names,
				Test:        e.test,
				Calibration: calib,
				Kinds:       cfg.Quantization.Kinds,
				Runner:      runner,
			}.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Models")
			report.WriteStatusTable(out, entries)

			results := runner.Store().Results()
			fmt.Fprintln(out, "\nBatch-size sweep")
			report.WriteSweepTable(out, results)
			fmt.Fprintln(out, "\nPer-model summary")
			report.WriteSummaryTable(out, report.Summarize(results))

			if quant := runner.Store().QuantResults(); len(quant) > 0 {
				fmt.Fprintf(out, "\nQuantized models (batch size %d)\n", cfg.Benchmark.QuantBatchSize)
				report.WriteQuantTable(out, quant)
			}

			if _, err := runner.Store().Save(cfg.Output.Dir); err != nil {
				return err
			}
			if cfg.Output.Plots && len(results) > 0 {
				if _, err := report.PlotSweep(results, cfg.Output.Dir); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "\nRun %s written to %s\n", runner.RunID(), cfg.Output.Dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Override the output directory")
	return cmd
}
