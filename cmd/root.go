// Package cmd defines the linkage-engine command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/config"
)

// RootCommand creates and returns the root command.
func RootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "linkage-engine",
		Short:         "Shipment linking engine",
		Long:          "Links shipping correspondence to shipments by extracted identifiers.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCommand(version),
		processCommand(version),
		backfillCommand(version),
		repairCommand(version),
	)

	return rootCmd
}

// setup loads configuration and builds the logger shared by every
// subcommand.
func setup(version string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return cfg, logger, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
