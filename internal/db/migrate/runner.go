// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run applies the embedded Postgres migrations in the given direction.
// direction must be "up" or "down". Returns nil on success; ErrNoChange is
// swallowed so repeated runs are harmless.
func Run(dsn string, direction string) error {
	if dsn == "" {
		return errors.New("empty Postgres DSN")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	}
	return nil
}

// ApplyClickHouse executes the embedded ClickHouse DDL against conn. All
// statements are IF NOT EXISTS, so reapplying is harmless.
func ApplyClickHouse(ctx context.Context, conn *sqlx.DB) error {
	entries, err := fs.ReadDir(db.ClickHouseSchemaFS, "migrations/clickhouse")
	if err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		raw, err := fs.ReadFile(db.ClickHouseSchemaFS, "migrations/clickhouse/"+e.Name())
		if err != nil {
			return fmt.Errorf("clickhouse schema %s: %w", e.Name(), err)
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clickhouse schema %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}
