package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"pushnami/api/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	upSQL   string
	downSQL string
}

var upPattern = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var result []migration
	for _, e := range entries {
		matches := upPattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		name := matches[2]

		upSQL, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		// Down migrations are optional.
		downSQL, _ := fs.ReadFile(migrationsFS, fmt.Sprintf("migrations/%03d_%s.down.sql", version, name))

		result = append(result, migration{
			version: version,
			name:    name,
			upSQL:   string(upSQL),
			downSQL: string(downSQL),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].version < result[j].version
	})
	return result, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// CurrentVersion returns the highest applied migration, or 0.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// MigrateUp applies every pending migration, each in its own transaction.
func MigrateUp(ctx context.Context, db *sql.DB, log *logger.Logger) (int, error) {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	all, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range all {
		if m.version <= current {
			continue
		}
		if err := runMigration(ctx, db, m.upSQL, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
			return err
		}); err != nil {
			return applied, fmt.Errorf("migration %03d_%s failed: %w", m.version, m.name, err)
		}
		log.Info("Applied migration", "version", m.version, "name", m.name)
		applied++
	}
	return applied, nil
}

// MigrateDown rolls back migrations above target.
func MigrateDown(ctx context.Context, db *sql.DB, target int, log *logger.Logger) (int, error) {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	all, err := loadMigrations()
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.version > current || m.version <= target {
			continue
		}
		if m.downSQL == "" {
			return reverted, fmt.Errorf("migration %03d_%s has no down script", m.version, m.name)
		}
		if err := runMigration(ctx, db, m.downSQL, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.version)
			return err
		}); err != nil {
			return reverted, fmt.Errorf("rollback %03d_%s failed: %w", m.version, m.name, err)
		}
		log.Info("Reverted migration", "version", m.version, "name", m.name)
		reverted++
	}
	return reverted, nil
}

func runMigration(ctx context.Context, db *sql.DB, script string, record func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}
