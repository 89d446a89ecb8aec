package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sqlx.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

// NewDB opens (and migrates) the sqlite database at path. Timestamps are
// returned in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite3", buildDSN(path, loc))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, path: path, loc: loc, logger: logger}
	if err := db.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Str("timezone", loc.String()).Msg("Database initialized")
	return db, nil
}

func buildDSN(path string, loc *time.Location) string {
	params := url.Values{}
	params.Set("_loc", loc.String())
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	if path == ":memory:" {
		return "file::memory:?" + params.Encode()
	}
	params.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + params.Encode()
}

func (db *DB) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            login TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            phone_number TEXT NOT NULL,
            chat_id INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'client' CHECK (status IN ('client', 'admin')),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS workers_info (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS working_time (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            worker_id INTEGER NOT NULL REFERENCES workers_info(id) ON DELETE CASCADE,
            day_week INTEGER NOT NULL CHECK (day_week BETWEEN 0 AND 6),
            time_start TEXT NOT NULL,
            time_end TEXT NOT NULL,
            CHECK (time_start < time_end),
            UNIQUE (worker_id, day_week)
        )`,
		`CREATE TABLE IF NOT EXISTS services_info (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            service_name TEXT NOT NULL UNIQUE,
            price INTEGER NOT NULL CHECK (price >= 0),
            payout_worker INTEGER NOT NULL CHECK (payout_worker >= 0),
            CHECK (payout_worker <= price)
        )`,
		`CREATE TABLE IF NOT EXISTS schedule (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            service_id INTEGER NOT NULL REFERENCES services_info(id),
            client_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            worker_id INTEGER NOT NULL REFERENCES workers_info(id) ON DELETE CASCADE,
            date DATETIME NOT NULL,
            created_at DATETIME NOT NULL,
            UNIQUE (worker_id, date)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            appointment_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_working_time_day ON working_time(day_week, worker_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_date ON schedule(date)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_client ON schedule(client_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_users_chat_id ON users(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Location is the fixed time zone of every stored timestamp.
func (db *DB) Location() *time.Location {
	return db.loc
}

func (db *DB) Path() string {
	return db.path
}

// stamp renders t as stored: UTC in StorageLayout. Equal instants always
// produce equal column values and the driver reads them back in db.loc.
func (db *DB) stamp(t time.Time) string {
	return t.UTC().Format(models.StorageLayout)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
