package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/classbench/benchmark"
	"github.com/nvr-ai/classbench/report"
)

// ErrRegression is returned by compare --fail-on-regression.
var ErrRegression = errors.New("benchmark regression detected")

func compareCmd() *cobra.Command {
	var (
		tol  = report.DefaultTolerance()
		fail bool
	)

	cmd := &cobra.Command{
		Use:   "compare BASELINE CURRENT",
		Short: "Compare the batch-size sweeps of two saved runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := benchmark.Load(args[0])
			if err != nil {
				return err
			}
			current, err := benchmark.Load(args[1])
			if err != nil {
				return err
			}

			comparisons := report.Compare(baseline.Results(), current.Results(), tol)
			report.WriteCompareTable(cmd.OutOrStdout(), comparisons)

			if fail && report.HasRegression(comparisons) {
				return errors.Wrapf(ErrRegression, "run %s against %s", current.RunID(), baseline.RunID())
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tol.DurationPercent, "duration-tolerance", tol.DurationPercent, "Allowed relative slowdown in percent")
	cmd.Flags().Float64Var(&tol.AccuracyPoints, "accuracy-tolerance", tol.AccuracyPoints, "Allowed accuracy drop in percentage points")
	cmd.Flags().BoolVar(&fail, "fail-on-regression", false, "Exit non-zero when any result regressed")
	return cmd
}
