package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"prepcuet/internal/app"
)

// NewScanCmd runs a single release scan, for use from an external scheduler.
func NewScanCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Release due results once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			notifier, err := newNotifier(cfg.Notifications)
			if err != nil {
				return err
			}
			report, err := newScanner(cfg, b, notifier, app.NewReleaseHub()).Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
