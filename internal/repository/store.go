package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open initializes the configured storage backend and, when enabled,
// applies pending migrations.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if driver == DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return NewMemoryStore().Store(), nil
	}

	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		applied, err := Migrate(ctx, db, driver)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		for _, m := range applied {
			log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
		}
	}

	return NewSQLStore(db), nil
}

// NewSQLStore wires the SQL repositories around an open connection
func NewSQLStore(db *sqlx.DB) *Store {
	return &Store{
		Driver:     db.DriverName(),
		Campaigns:  NewCampaignRepository(db),
		Recipients: NewRecipientRepository(db),
		Stats:      NewStatsRepository(db),
		ping:       db.PingContext,
		close:      db.Close,
	}
}

// Connect opens and pings the SQL database selected by cfg. The driver
// name doubles as the migration dialect.
func Connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver)); driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg.GetDatabaseDSN())
	case DriverSQLite:
		return openSQLite(ctx, cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("storage driver %q has no SQL database", driver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single writer; the CAS updates rely on serialized writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}
