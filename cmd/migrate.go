package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/config"
)

func newMigrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Long: `Open the store configured by CALCONNECT_DATABASE_URL, apply pending
migrations and exit. serve applies migrations on startup as well; this command
lets a deployment run them as a separate step.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("migrations applied")
			return st.Close()
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Maximum time to wait for the database")

	return cmd
}
