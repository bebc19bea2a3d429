package main

import (
	"context"
	"fmt"

	"github.com/diewo77/billing-core/internal/config"
	"github.com/diewo77/billing-core/internal/db"
	"github.com/diewo77/billing-core/internal/obs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app is shared by subcommands once the root has loaded configuration.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "billctl",
		Short: "Billing maintenance: schema migrations, total repair and reports",
		Long: `billctl operates on the database configured through the environment
(DB_DRIVER, DATABASE_DSN, MIGRATIONS, ...; a .env file is read when present).

Examples:
  billctl migrate
  billctl recalc
  billctl report csv --user 1 --out bills_report.csv`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			// Logs go to stderr so reports can be piped from stdout.
			a.log = obs.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
			return nil
		},
	}
	root.AddCommand(newMigrateCmd(a), newRecalcCmd(a), newReportCmd(a))
	return root
}

func (a *app) open(ctx context.Context) (*gorm.DB, func(), error) {
	conn, err := db.ConnectAndMigrate(ctx, a.cfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return conn, closeFn, nil
}
