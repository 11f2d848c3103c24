package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/service-jobs/pkg/config"
	"github.com/jdziat/service-jobs/pkg/core"
)

func newMigrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			st, err := requireStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("database migrated", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func newStatsCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of stored jobs per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := requireStorage(cfg, config.NewLogger(cfg.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := st.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range core.Statuses {
				fmt.Fprintf(out, "%-12s %d\n", s, counts[s])
			}
			return nil
		},
	}
}

func newPurgeCommand(load loader) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed and QC-approved jobs not saved within --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := requireStorage(cfg, config.NewLogger(cfg.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := st.PurgeTerminal(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "minimum age of the last save")
	return cmd
}
