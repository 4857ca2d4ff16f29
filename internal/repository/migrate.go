package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql seeds/*.sql
var schemaFS embed.FS

// Pattern: 001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{3})_(.+)\.sql$`)

// Migration represents a database migration
type Migration struct {
	Version   int
	Name      string
	FilePath  string
	Applied   bool
	AppliedAt *time.Time
}

// LoadMigrations lists the embedded migrations for a dialect, sorted by version
func LoadMigrations(dialect string) ([]Migration, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", dialect, err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(e.Name())
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			FilePath: path.Join(dir, e.Name()),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func createMigrationTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sqlx.DB) (map[int]Migration, error) {
	rows, err := db.QueryxContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		m.Applied = true
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// MigrationStatus reports every known migration and whether it has been applied
func MigrationStatus(ctx context.Context, db *sqlx.DB, dialect string) ([]Migration, error) {
	if err := createMigrationTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(dialect)
	if err != nil {
		return nil, err
	}
	for i, m := range migrations {
		if a, ok := applied[m.Version]; ok {
			migrations[i].Applied = true
			migrations[i].AppliedAt = a.AppliedAt
		}
	}
	return migrations, nil
}

// Migrate applies all pending migrations, each in its own transaction,
// and returns the ones it applied.
func Migrate(ctx context.Context, db *sqlx.DB, dialect string) ([]Migration, error) {
	all, err := MigrationStatus(ctx, db, dialect)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range all {
		if m.Applied {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return done, fmt.Errorf("failed to apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
		m.Applied = true
		done = append(done, m)
	}
	return done, nil
}

func runMigration(ctx context.Context, db *sqlx.DB, m Migration) error {
	content, err := schemaFS.ReadFile(m.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Seed loads the demo newsletters and subscribers
func Seed(ctx context.Context, db *sqlx.DB) error {
	content, err := schemaFS.ReadFile("seeds/seed.sql")
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to seed data: %w", err)
	}
	return nil
}
