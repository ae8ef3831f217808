package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// DB wraps the postgres connection pool.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// New opens and pings the database. When the first ping fails and the URL
// does not choose an sslmode, it retries once with sslmode=disable.
func New(ctx context.Context, connectionString string, logger zerolog.Logger) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	sqlDB, err := open(ctx, connectionString)
	if err != nil && !strings.Contains(strings.ToLower(connectionString), "sslmode") {
		logger.Warn().Err(err).Msg("retrying database connection with SSL disabled")
		sqlDB, err = open(ctx, withSSLDisabled(connectionString))
	}
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{DB: sqlDB, logger: logger}, nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqlDB, nil
}

func withSSLDisabled(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&sslmode=disable"
	}
	return dsn + "?sslmode=disable"
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Migration is one NNN_name.sql file.
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// RunMigrations applies, in order, every migration in dir that is not yet
// recorded in schema_migrations. Each migration runs in its own transaction.
func (db *DB) RunMigrations(ctx context.Context, dir string) error {
	migrations, err := readMigrations(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(migrations) == 0 {
		db.logger.Info().Str("dir", dir).Msg("no migrations found")
		return nil
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		if err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Number,
		).Scan(&applied); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			db.logger.Debug().Int("version", m.Number).Msg("migration already applied")
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return err
		}
		db.logger.Info().Int("version", m.Number).Str("name", m.Name).Msg("migration applied")
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", m.Number, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Number, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Number, err)
	}
	return tx.Commit()
}

// readMigrations lists NNN_name.sql files sorted by number. Files that do
// not follow the pattern are ignored.
func readMigrations(dir string) ([]Migration, error) {
	var migrations []Migration
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		num, rest, ok := strings.Cut(d.Name(), "_")
		if !ok {
			return nil
		}
		number, err := strconv.Atoi(num)
		if err != nil {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", d.Name(), err)
		}
		migrations = append(migrations, Migration{
			Number: number,
			Name:   strings.TrimSuffix(rest, ".sql"),
			SQL:    string(b),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}
