package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voyago-dev/voyago/internal/dataset"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "ingest <csv>...",
		Short: "Load city CSV exports into the listing database",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if len(args) == 0 && len(cfg.DatasetCSVs) == 0 {
				return fmt.Errorf("no CSV files given and dataset_csvs is not configured")
			}
			if len(args) > 0 && city == "" {
				return fmt.Errorf("--city is required when passing CSV files")
			}

			store, err := dataset.Open(cfg.DatasetPath)
			if err != nil {
				return err
			}

			total := 0
			for _, path := range args {
				n, err := store.IngestCSV(cmd.Context(), city, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d listings\n", path, n)
				total += n
			}

			// Configured city exports load after the explicit arguments.
			for cfgCity, path := range cfg.DatasetCSVs {
				n, err := store.IngestCSV(cmd.Context(), cfgCity, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d listings\n", path, cfgCity, n)
				total += n
			}

			fmt.Fprintf(cmd.OutOrStdout(), "total: %d listings in %s\n", total, cfg.DatasetPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "city to tag rows that lack a location column")
	return cmd
}
