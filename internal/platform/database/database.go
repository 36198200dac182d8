// Package database opens the SQL store and applies the embedded schema.
// DATABASE_URL selects the driver: postgres:// for PostgreSQL, sqlite3:// for
// a local SQLite file on edge deployments.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations
var migrations embed.FS

// ErrUnsupportedURL is returned for a DATABASE_URL with an unknown scheme.
var ErrUnsupportedURL = errors.New("unsupported database url")

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// DB is a *sql.DB that remembers its dialect and URL.
type DB struct {
	*sql.DB
	Dialect Dialect
	url     string
}

// Options tune Open.
type Options struct {
	MaxOpenConns int
	// Retries is how many extra pings are attempted before giving up.
	Retries uint64
	// Backoff is the base delay of the Fibonacci retry schedule.
	Backoff time.Duration
}

func parseURL(raw string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Postgres, raw, nil
	case strings.HasPrefix(raw, "sqlite3://"):
		return SQLite, strings.TrimPrefix(raw, "sqlite3://"), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
}

// Open connects and waits until the database answers a ping.
func Open(ctx context.Context, rawURL string, opts Options) (*DB, error) {
	dialect, dsn, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(opts.Retries, retry.NewFibonacci(backoff)), func(ctx context.Context) error {
		attempt++
		if err := sqlDB.PingContext(ctx); err != nil {
			slog.Warn("waiting for database", "dialect", dialect, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	slog.Info("connected to database", "dialect", dialect)
	return &DB{DB: sqlDB, Dialect: dialect, url: rawURL}, nil
}

// Migrate applies the embedded migrations for the DB's dialect.
func (db *DB) Migrate() error {
	dir := "migrations/postgres"
	if db.Dialect == SQLite {
		dir = "migrations/sqlite"
	}
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, db.url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ := m.Version()
	slog.Info("migrations applied", "dialect", db.Dialect, "version", version)
	return nil
}
