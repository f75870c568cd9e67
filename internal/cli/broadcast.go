package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"prepcuet/internal/app"
	"prepcuet/internal/domain"
	transport "prepcuet/internal/transport/http"
)

// NewBroadcastCmd announces a new test to every registered user.
func NewBroadcastCmd(configPath *string) *cobra.Command {
	var b domain.Broadcast
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Email every user about a newly published test",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			be, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.Close()

			notifier, err := newNotifier(cfg.Notifications)
			if err != nil {
				return err
			}
			report, err := app.NewBroadcastService(be.users, notifier, cfg.Notifications.Concurrency).Broadcast(cmd.Context(), b)
			if err != nil {
				return err
			}
			if report.Total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), report.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notification sent to %d of %d users (%d failed)\n",
				report.SuccessCount, report.Total, report.FailCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&b.TestID, "test-id", "", "id of the published test")
	cmd.Flags().StringVar(&b.TestTitle, "title", "", "test title")
	cmd.Flags().StringVar(&b.TestDescription, "description", "", "short description for the email")
	_ = cmd.MarkFlagRequired("test-id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// NewAdminTokenCmd prints a signed token for the admin-only API routes.
func NewAdminTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Sign an admin token with admin.jwtSecret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return fmt.Errorf("admin.jwtSecret not configured")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			token, err := transport.SignAdminToken(cfg.Admin.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
