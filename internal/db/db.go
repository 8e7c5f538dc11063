// Package db provides the local durable store: connection management,
// schema migrations and tenant-scoped entity storage.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "shopsync.db"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Querier is satisfied by *sql.DB, *sql.Tx and *DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the sql.DB with shopsync-specific configuration.
type DB struct {
	*sql.DB
	path string
}

// Open opens (and migrates) the SQLite database inside dataDir.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - A busy timeout so a second process waits instead of failing
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenPath(filepath.Join(dataDir, FileName))
}

// OpenPath opens (and migrates) the SQLite database file at path.
func OpenPath(path string) (*DB, error) {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	dsn := "file:" + path + "?" + q.Encode()

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	var journal string
	if err := sqlDB.QueryRow("PRAGMA journal_mode;").Scan(&journal); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to read journal mode: %w", err)
	}
	if journal != "wal" {
		sqlDB.Close()
		return nil, fmt.Errorf("WAL mode not enabled (journal_mode=%s)", journal)
	}

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	m := NewMigrator(sqlDB, migrations)
	if err := m.Initialize(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
