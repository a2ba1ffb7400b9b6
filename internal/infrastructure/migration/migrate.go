package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator applies the SQL migrations under migrations/ to the sync
// database. It wraps golang-migrate with the subset of operations this
// project deploys with: apply everything, roll back n steps, inspect the
// version, and repair a dirty state.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// New creates a Migrator over an open database handle.
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies every pending migration.
func (g *Migrator) Up() error {
	err := g.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		g.logger.Info("Schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	g.logVersion("Migrations applied")
	return nil
}

// Rollback rolls back the given number of migrations.
func (g *Migrator) Rollback(n int) error {
	if n < 1 {
		return fmt.Errorf("rollback count must be at least 1, got %d", n)
	}
	err := g.m.Steps(-n)
	if errors.Is(err, migrate.ErrNoChange) {
		g.logger.Info("Nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollback %d: %w", n, err)
	}
	g.logVersion("Rollback complete")
	return nil
}

// Version returns the current schema version. A zero version with no error
// means no migration has been applied yet.
func (g *Migrator) Version() (uint, bool, error) {
	version, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

// Force overwrites the recorded schema version without running any SQL.
// Only for recovering from a dirty state after a failed migration.
func (g *Migrator) Force(version int) error {
	g.logger.Warn("Forcing schema version", zap.Int("version", version))
	if err := g.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and database handles.
func (g *Migrator) Close() error {
	sourceErr, dbErr := g.m.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}

func (g *Migrator) logVersion(msg string) {
	version, dirty, err := g.Version()
	if err != nil {
		g.logger.Warn(msg, zap.Error(err))
		return
	}
	g.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}
