package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/freightdesk/linkage-engine/pkg/engine"
	"github.com/freightdesk/linkage-engine/pkg/services"
)

// processCommand creates the batch processing command. With --message it
// processes a single message instead of the unlinked backlog.
func processCommand(version string) *cobra.Command {
	var (
		messageID string
		batchSize int
		maxItems  int
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process unlinked messages through the linking pipeline",
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

			if messageID != "" {
				id, err := uuid.Parse(messageID)
				if err != nil {
					return fmt.Errorf("invalid message id %q: %w", messageID, err)
				}
				result, err := eng.Links.ProcessMessage(cmd.Context(), id)
				if err != nil {
					return err
				}
				printResult(cmd, result)
				return nil
			}

			counts, err := eng.Links.ProcessUnlinkedMessages(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(cmd, counts)
			return nil
		},
	}

	cmd.Flags().StringVar(&messageID, "message", "", "Process a single message by id")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override the configured batch page size")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap how many messages this run processes")

	return cmd
}

func printResult(cmd *cobra.Command, result *services.LinkResult) {
	if result.ShipmentID != nil {
		cmd.Printf("message %s: %s (shipment %s, score %d)\n",
			result.MessageID, result.Outcome, result.ShipmentID, result.Score)
		return
	}
	cmd.Printf("message %s: %s\n", result.MessageID, result.Outcome)
}

func printCounts(cmd *cobra.Command, counts services.BatchCounts) {
	cmd.Printf("processed=%d linked=%d suggested=%d orphaned=%d conflicts=%d errors=%d\n",
		counts.Processed, counts.Linked, counts.Suggested,
		counts.Orphaned, counts.Conflicts, counts.Errors)
}
