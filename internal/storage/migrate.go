package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion reports where RunMigrations left the database.
type SchemaVersion struct {
	Version uint
	// Applied is false when the schema was already current.
	Applied bool
}

// RunMigrations brings the users and expenses schema at dbPath up to date.
// It opens its own connection through the migrate sqlite driver, which
// closes it when done.
func RunMigrations(dbPath string) (SchemaVersion, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+dbPath)
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return SchemaVersion{}, fmt.Errorf("apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return SchemaVersion{}, fmt.Errorf("schema is dirty at version %d", version)
	}
	return SchemaVersion{Version: version, Applied: applied}, nil
}
