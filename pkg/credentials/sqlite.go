package credentials

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend persists credentials in a SQLite table
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials database: %w", err)
	}
	// a single connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			user TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			secret TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}
	return nil
}

// Load reads every stored credential
func (b *SQLiteBackend) Load() (map[string]Credential, error) {
	rows, err := b.db.Query(`SELECT user, username, secret, api_key FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]Credential)
	for rows.Next() {
		var user string
		var c Credential
		if err := rows.Scan(&user, &c.Username, &c.Secret, &c.APIKey); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds[user] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return creds, nil
}

// Save replaces the table contents with creds in one transaction
func (b *SQLiteBackend) Save(creds map[string]Credential) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO credentials (user, username, secret, api_key, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for user, c := range creds {
		if _, err := stmt.Exec(user, c.Username, c.Secret, c.APIKey, now); err != nil {
			return fmt.Errorf("failed to store credential for %s: %w", user, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
