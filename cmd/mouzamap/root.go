package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"mouzamap.org/internal/appconf"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mouzamap",
		Short: "District and mouza boundary service",
		Long: `mouzamap loads district and mouza boundaries from GeoJSON, attributes
every mouza to the districts that contain it, and serves lookups, place
search and a shared map selection over HTTP.`,
		SilenceUsage: true,
	}
	appconf.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(), newIndexCmd())
	return root
}

// loadConfig resolves and validates configuration for cmd.
func loadConfig(cmd *cobra.Command) (appconf.Config, error) {
	cfg, err := appconf.Load(cmd.Flags())
	if err != nil {
		return appconf.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return appconf.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
