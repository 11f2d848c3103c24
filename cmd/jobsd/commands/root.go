// Package commands implements the jobsd command line.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jdziat/service-jobs/pkg/config"
	"github.com/jdziat/service-jobs/pkg/storage"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "jobsd",
		Short:         "Service job lifecycle and technician time ledger",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration:\n%w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCommand(load),
		newMigrateCommand(load),
		newStatsCommand(load),
		newPurgeCommand(load),
		newVersionCommand(),
	)
	return rootCmd
}

type loader func() (*config.Config, error)

// openStorage connects to the configured database. It returns nil for the
// memory driver.
func openStorage(cfg *config.Config, logger *slog.Logger) (*storage.GormStorage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory job storage; jobs are lost on restart")
		return nil, nil
	}
	st, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN, storage.WithPoolConfig(cfg.Database.PoolConfig()))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// requireStorage is openStorage for commands that cannot run in memory.
func requireStorage(cfg *config.Config, logger *slog.Logger) (*storage.GormStorage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		return nil, fmt.Errorf("database.driver is %q; this command needs sqlite or postgres", config.DriverMemory)
	}
	return openStorage(cfg, logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the jobsd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "jobsd", Version)
		},
	}
}
