// internal/database/migration.go
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	err := m.run(func(mg *migrate.Migrate) error { return mg.Up() })
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	m.logger.Info("Database migrations completed successfully")
	return nil
}

// Down rolls back every migration
func (m *Migrator) Down() error {
	err := m.run(func(mg *migrate.Migrate) error { return mg.Down() })
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	m.logger.Info("Database migrations rolled back successfully")
	return nil
}

// Version returns the current migration version. A database that has never
// been migrated reports version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.run(func(mg *migrate.Migrate) error {
		version, dirty, err = mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag
func (m *Migrator) Force(version int) error {
	if err := m.run(func(mg *migrate.Migrate) error { return mg.Force(version) }); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	m.logger.Info("Migration version forced", zap.Int("version", version))
	return nil
}

// run executes fn against a fresh migrate instance. ErrNoChange is success.
func (m *Migrator) run(fn func(*migrate.Migrate) error) error {
	mg, err := m.createMigrator()
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
			m.logger.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	if err := fn(mg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// createMigrator builds a migrate instance over the embedded scripts
func (m *Migrator) createMigrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	// A dedicated connection keeps migrate.Close from closing the shared pool.
	ctx := context.Background()
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return migrator, nil
}
