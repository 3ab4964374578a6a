package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/freightdesk/linkage-engine/pkg/engine"
)

// backfillCommand creates the backfill command. With --shipment it links
// related messages for a single shipment instead of the whole fleet.
func backfillCommand(version string) *cobra.Command {
	var (
		shipmentID string
		batchSize  int
		maxItems   int
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Link historical messages to existing shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(version)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if batchSize > 0 {
				cfg.Linking.BatchSize = batchSize
			}
			if maxItems > 0 {
				cfg.Linking.MaxItems = maxItems
			}

			eng, err := engine.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if shipmentID != "" {
				id, err := uuid.Parse(shipmentID)
				if err != nil {
					return fmt.Errorf("invalid shipment id %q: %w", shipmentID, err)
				}
				counts, err := eng.Backfill.LinkRelatedMessages(cmd.Context(), id)
				if err != nil {
					return err
				}
				printCounts(cmd, counts)
				return nil
			}

			counts, err := eng.Backfill.BackfillAll(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(cmd, counts)
			return nil
		},
	}

	cmd.Flags().StringVar(&shipmentID, "shipment", "", "Backfill a single shipment by id")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override the configured batch page size")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap how many shipments this run sweeps")

	return cmd
}
