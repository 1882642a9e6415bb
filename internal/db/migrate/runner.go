// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"connections-portal/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is golang-migrate's "already at target" error. Run never returns it.
var ErrNoChange = migrate.ErrNoChange

// ErrEmptyDSN is returned when no DSN is configured.
var ErrEmptyDSN = errors.New("DATABASE_URL is not set; create a .env or export DATABASE_URL")

// Direction selects which way Run migrates.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts exactly "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	default:
		return "", fmt.Errorf("direction must be up or down, got %q", s)
	}
}

// Run migrates the database at dsn all the way in direction. Being at the target already is not an error.
func Run(dsn string, direction string) error {
	d, err := ParseDirection(direction)
	if err != nil {
		return err
	}
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if d == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Version reports the applied schema version. version is 0 when nothing has been applied;
// dirty means a previous migration failed midway and needs manual repair.
func Version(dsn string) (version uint, dirty bool, err error) {
	m, err := open(dsn)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func open(dsn string) (*migrate.Migrate, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}
