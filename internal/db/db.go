package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Connect opens the database for the given driver.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if driver == DriverSQLite {
		// an in-memory database lives and dies with its connection
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate creates the tables the sql store reads and writes.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := postgresMigrations
	if db.DriverName() == DriverSQLite {
		migrations = sqliteMigrations
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	logrus.WithField("driver", db.DriverName()).Info("database migrations applied")
	return nil
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id TEXT PRIMARY KEY,
        nickname TEXT,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        host_id TEXT NOT NULL,
        title TEXT NOT NULL,
        purpose TEXT NOT NULL,
        start_at TIMESTAMPTZ NOT NULL,
        end_at TIMESTAMPTZ NOT NULL,
        place_text TEXT NOT NULL,
        capacity INT NOT NULL CHECK (capacity BETWEEN 2 AND 6),
        status TEXT NOT NULL DEFAULT 'open',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        CHECK (end_at > start_at)
    );`,
	`CREATE INDEX IF NOT EXISTS sessions_status_start_idx ON sessions (status, start_at);`,
	`CREATE TABLE IF NOT EXISTS session_members (
        session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
        user_id TEXT NOT NULL,
        role TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (session_id, user_id)
    );`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id TEXT PRIMARY KEY,
        nickname TEXT,
        updated_at TIMESTAMP NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        host_id TEXT NOT NULL,
        title TEXT NOT NULL,
        purpose TEXT NOT NULL,
        start_at TIMESTAMP NOT NULL,
        end_at TIMESTAMP NOT NULL,
        place_text TEXT NOT NULL,
        capacity INTEGER NOT NULL CHECK (capacity BETWEEN 2 AND 6),
        status TEXT NOT NULL DEFAULT 'open',
        created_at TIMESTAMP NOT NULL,
        CHECK (end_at > start_at)
    );`,
	`CREATE INDEX IF NOT EXISTS sessions_status_start_idx ON sessions (status, start_at);`,
	`CREATE TABLE IF NOT EXISTS session_members (
        session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
        user_id TEXT NOT NULL,
        role TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        PRIMARY KEY (session_id, user_id)
    );`,
}
