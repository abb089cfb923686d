package sqlite

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp brings the ledger schema to the latest version. An already
// current schema is not an error.
func (s *Store) MigrateUp() error {
	return s.migrate("up", func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back the most recent schema version.
func (s *Store) MigrateDown() error {
	return s.migrate("down", func(m *migrate.Migrate) error { return m.Steps(-1) })
}

// MigrateVersion reports the applied schema version. A fresh database
// reports 0 and not dirty.
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (s *Store) migrate(direction string, step func(*migrate.Migrate) error) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	// m is never closed: closing it would close the shared *sql.DB.
	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		s.log.Opsf("ledger migration %s failed: %v", direction, err)
		return fmt.Errorf("ledger migration %s: %w", direction, err)
	}
	return nil
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	m.Log = migrateLog{s.log}
	return m, nil
}

// migrateLog forwards golang-migrate output to the diag stream. Verbose
// step messages are requested only when that stream is enabled.
type migrateLog struct {
	log *model.Logger
}

func (l migrateLog) Printf(format string, v ...interface{}) {
	l.log.Diagf("migrate: "+format, v...)
}

func (l migrateLog) Verbose() bool {
	return l.log.DiagEnabled()
}
