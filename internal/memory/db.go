// Package memory implements the kernel's partitioned memory store: a
// SQLite-backed key/value + relational substrate with per-table retention,
// row-level access control, and pattern caching (spec.md §3, §4.1).
package memory

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/001_pattern_columns.sql
var migration001 string

var logger = log.New(os.Stderr, "[MEMORY] ", log.LstdFlags)

// DB is the concrete SQLite-backed implementation of Store.
type DB struct {
	conn         *sql.DB
	path         string
	patternCache *patternCache
}

// Open creates (or reopens) the memory store at path, running any pending
// migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memory db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	db := &DB{conn: conn, path: path, patternCache: newPatternCache()}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate memory db: %w", err)
	}

	return db, nil
}

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	err := d.conn.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 2 {
		logger.Println("running migration to v2: backfill pattern columns")
		if _, err := d.conn.Exec(migration001); err != nil {
			return fmt.Errorf("run migration 001: %w", err)
		}
		if _, err := d.conn.Exec("INSERT INTO schema_version (version) VALUES (2)"); err != nil {
			return fmt.Errorf("record schema version 2: %w", err)
		}
	}

	return nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *DB) withTx(fn func(*sql.Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
