// Package db opens the gorm connection and applies the schema.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/billing-core/internal/config"
	"github.com/diewo77/billing-core/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres may still be starting when the app boots (docker compose).
var (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

var requiredTables = []string{"clients", "product_services", "bills", "bill_items"}

// Open connects with the configured driver, retrying while the database comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dsn := cfg.DSN
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn = NormalizeDSN(dsn)
		if dsn == "" {
			return nil, errors.New("DATABASE_DSN is empty")
		}
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Int("max_attempts", connectAttempts).Msg("database connection failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", connectAttempts, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.Driver == config.DriverSQLite && (strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")) {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.Info().Str("driver", cfg.Driver).Str("dsn", MaskDSN(dsn)).Msg("database connected")
	return conn, nil
}

// Migrate applies the schema. With sqlMigrations the embedded golang-migrate files are
// run (postgres only); otherwise gorm AutoMigrate is used.
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool, log zerolog.Logger) error {
	if sqlMigrations {
		if cfg.Driver != config.DriverPostgres {
			return fmt.Errorf("sql migrations require the %s driver", config.DriverPostgres)
		}
		if err := runSQLMigrations(ToURLDSN(NormalizeDSN(cfg.DSN)), log); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := conn.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
		log.Info().Msg("automigrate completed")
	}

	for _, table := range requiredTables {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// ConnectAndMigrate opens the database and applies the schema per cfg.
func ConnectAndMigrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	conn, err := Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, cfg.Database, cfg.App.Migrations, log); err != nil {
		return nil, err
	}
	return conn, nil
}

func runSQLMigrations(dsn string, log zerolog.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source_error", srcErr).AnErr("db_error", dbErr).Msg("closing migrator")
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("sql migrations applied")
	}
	return nil
}
