package identity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists the store in a local SQLite database. The
// whole store is still the unit of persistence: each Save rewrites the
// record set inside one transaction, which gives the same no-partial-
// record guarantee as the file backend's temp-and-rename.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS identities (
			caller_key TEXT PRIMARY KEY,
			id INTEGER NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			history_json TEXT NOT NULL DEFAULT '[]'
		);`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("init identities schema: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) Load() (map[string]*Record, error) {
	rows, err := b.db.Query(`SELECT caller_key, id, display_name, history_json FROM identities`)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	records := map[string]*Record{}
	for rows.Next() {
		var rec Record
		var historyJSON string
		if err := rows.Scan(&rec.CallerKey, &rec.ID, &rec.DisplayName, &historyJSON); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
			return nil, fmt.Errorf("parse history for %s: %w", rec.CallerKey, err)
		}
		if rec.History == nil {
			rec.History = []Turn{}
		}
		records[rec.CallerKey] = &rec
	}
	return records, rows.Err()
}

func (b *SQLiteBackend) Save(records map[string]*Record) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM identities`); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}
	for key, rec := range records {
		historyJSON, err := json.Marshal(rec.History)
		if err != nil {
			return fmt.Errorf("encode history for %s: %w", key, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO identities (caller_key, id, display_name, history_json) VALUES (?, ?, ?, ?)`,
			key, rec.ID, rec.DisplayName, string(historyJSON),
		); err != nil {
			return fmt.Errorf("insert identity %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
