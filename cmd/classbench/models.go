package main

import (
	"github.com/spf13/cobra"

	"github.com/nvr-ai/classbench/inference/providers"
	"github.com/nvr-ai/classbench/models"
	"github.com/nvr-ai/classbench/report"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Resolve the configured models and print their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}

			// Native networks are fitted from the train split, so only load data when asked for.
			e, err := newEnv(cfg, len(cfg.Models.Native) > 0)
			if err != nil {
				return err
			}
			defer providers.Shutdown()

			entries, err := e.registry().Load(cmd.Context(), cfg.Models.Names)
			if err != nil {
				return err
			}
			defer models.CloseAll(entries)

			report.WriteStatusTable(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}
