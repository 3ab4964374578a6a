package cmd

import (
	"github.com/spf13/cobra"

	"github.com/freightdesk/linkage-engine/pkg/engine"
)

// repairCommand creates the cross-link repair command.
func repairCommand(version string) *cobra.Command {
	var dryRun bool
	var limit int

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair reply links that disagree with their thread authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(version)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			eng, err := engine.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Backfill.RepairCrossLinks(cmd.Context(), dryRun, limit)
			if err != nil {
				return err
			}

			cmd.Printf("examined=%d mismatched=%d repaired=%d dry_run=%v\n",
				report.Examined, report.Mismatched, report.Repaired, report.DryRun)
			for _, item := range report.Items {
				cmd.Printf("  message %s: %s -> %s\n",
					item.MessageID, item.LinkedShipmentID, item.ExpectedShipmentID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report mismatched links without repairing them")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum reply links to examine (0 = all)")

	return cmd
}
