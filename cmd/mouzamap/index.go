package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"mouzamap.org/internal/app"
	"mouzamap.org/internal/boundary"
	"mouzamap.org/internal/geometry"
	"mouzamap.org/internal/logging"
	"mouzamap.org/internal/region"
)

// indexReport is the JSON printed by the index command.
type indexReport struct {
	Stats     region.Stats        `json:"stats"`
	Districts map[string][]string `json:"districts"`
	Sample    bool                `json:"sample"`
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the district to mouza index and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Logs go to stderr so stdout stays valid JSON.
			level := cfg.LogLevel
			if cfg.Verbose {
				level = "debug"
			}
			logger := logging.New(os.Stderr, cfg.LogFormat, level)

			report, err := buildIndexReport(app.SourceFromConfig(cfg, logger), logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func buildIndexReport(src boundary.Source, logger *slog.Logger) (indexReport, error) {
	cols, err := src.Load()
	if err != nil {
		return indexReport{}, fmt.Errorf("failed to load boundaries: %w", err)
	}

	idx := region.Build(cols.Districts, cols.Mouzas,
		region.WithEngine(geometry.NewEngine(logger)),
		region.WithLogger(logger))

	districts := make(map[string][]string, len(idx.Parents()))
	for _, name := range idx.Parents() {
		districts[name] = idx.ChildrenOf(name)
	}
	return indexReport{
		Stats:     idx.Stats(),
		Districts: districts,
		Sample:    cols.Sample,
	}, nil
}
