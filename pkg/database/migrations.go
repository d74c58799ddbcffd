package database

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations applies any pending SQL migrations from migrationsPath. It
// runs on every boot; an up-to-date schema is a no-op. A dirty schema version
// (a previously interrupted migration) aborts startup instead of papering
// over it.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	before, dirty, verr := m.Version()
	if verr == nil && dirty {
		return fmt.Errorf("schema version %d is dirty; resolve it before starting", before)
	}

	switch err := m.Up(); err {
	case nil:
	case migrate.ErrNoChange:
		logger.Info("Schema is up to date", zap.Uint("version", before))
		return nil
	default:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, _, _ := m.Version()
	logger.Info("Applied schema migrations",
		zap.Uint("from", before),
		zap.Uint("to", after),
		zap.String("path", migrationsPath))
	return nil
}
