package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationStatus describes the schema after RunMigrations.
type MigrationStatus struct {
	Version uint
	// Applied is false when the schema was already up to date.
	Applied bool
}

// RunMigrations migrates the schema at dsn up to the newest migration found at path.
// A schema left dirty by an interrupted migration is reported as an error.
func RunMigrations(path string, dsn string) (MigrationStatus, error) {
	const op = "postgres.RunMigrations"

	m, err := migrate.New(path, dsn)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	var status MigrationStatus

	switch err := m.Up(); {
	case err == nil:
		status.Applied = true
	case errors.Is(err, migrate.ErrNoChange):
	default:
		return MigrationStatus{}, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return status, nil
	case err != nil:
		return MigrationStatus{}, fmt.Errorf("%s: failed to read schema version: %w", op, err)
	case dirty:
		return MigrationStatus{}, fmt.Errorf("%s: schema version %d is dirty", op, version)
	}

	status.Version = version

	return status, nil
}
