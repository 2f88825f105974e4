package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m8riozzz/Bot-M8rioo/internal/config"
	"github.com/m8riozzz/Bot-M8rioo/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBPruneCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the ticket database",
		Long:  "Connects to the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ticketd.yaml", "path to ticketd config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newDBPruneCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete closed ticket records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBPrune(cmd, configPath, days)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ticketd.yaml", "path to ticketd config file")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "retention in days (defaults to housekeeping.retention_days)")
	return cmd
}

func runDBPrune(cmd *cobra.Command, configPath string, days int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if days <= 0 {
		days = cfg.Housekeeping.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("prune: retention window not set (use --days or housekeeping.retention_days)")
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := db.PruneClosed(gormDB, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned %d closed ticket records older than %d days\n", n, days)
	return nil
}
