// Package sessionrepo persists the one active session row per user
// (spec §4.6) and the per-user remembered working directory (spec
// §6.3) in SQLite, pure-Go via modernc.org/sqlite so the bridge never
// needs CGO.
package sessionrepo

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Record is one row of bot_sessions.
type Record struct {
	UserID     string
	SessionID  string
	Directory  string
	Model      string
	Betas      []string
	LastActive time.Time
}

// Repo wraps a *sql.DB configured for WAL mode and a bounded busy
// timeout, grounded directly on the odvcencio-buckley storage
// package's New().
type Repo struct {
	db *sql.DB
}

// Open creates (if needed) the database file with private
// permissions, applies pragmas, and runs the embedded schema.
func Open(dbPath string) (*Repo, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sessionrepo: create db dir: %w", err)
		}
	}
	if err := ensurePrivateFile(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sessionrepo: open: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sessionrepo: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionrepo: apply schema: %w", err)
	}

	return &Repo{db: db}, nil
}

func ensurePrivateFile(path string) error {
	if path == ":memory:" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("sessionrepo: stat db path: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("sessionrepo: create db file: %w", err)
	}
	return f.Close()
}

// Close closes the underlying database connection.
func (r *Repo) Close() error { return r.db.Close() }

// Upsert replaces the whole row for userID (spec §4.6: "whole-row
// replace"), atomically.
func (r *Repo) Upsert(userID, sessionID, directory, model string, betas []string) error {
	var betasJSON any
	if len(betas) > 0 {
		b, err := json.Marshal(betas)
		if err != nil {
			return fmt.Errorf("sessionrepo: marshal betas: %w", err)
		}
		betasJSON = string(b)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("sessionrepo: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO bot_sessions (user_id, session_id, directory, model, betas, last_active)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			session_id = excluded.session_id,
			directory = excluded.directory,
			model = excluded.model,
			betas = excluded.betas,
			last_active = CURRENT_TIMESTAMP
	`, userID, sessionID, directory, nullIfEmpty(model), betasJSON)
	if err != nil {
		return fmt.Errorf("sessionrepo: upsert: %w", err)
	}

	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetByUser returns the session row for userID, or nil if none exists.
func (r *Repo) GetByUser(userID string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT user_id, session_id, directory, model, betas, last_active
		FROM bot_sessions WHERE user_id = ?
	`, userID)

	var rec Record
	var model, betas sql.NullString
	if err := row.Scan(&rec.UserID, &rec.SessionID, &rec.Directory, &model, &betas, &rec.LastActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionrepo: get: %w", err)
	}
	rec.Model = model.String
	if betas.Valid && betas.String != "" {
		if err := json.Unmarshal([]byte(betas.String), &rec.Betas); err != nil {
			return nil, fmt.Errorf("sessionrepo: unmarshal betas: %w", err)
		}
	}
	return &rec, nil
}

// Delete removes the session row for userID.
func (r *Repo) Delete(userID string) error {
	_, err := r.db.Exec(`DELETE FROM bot_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sessionrepo: delete: %w", err)
	}
	return nil
}

// CleanupExpired removes rows whose last_active is older than
// maxAgeHours and returns the number of rows removed.
func (r *Repo) CleanupExpired(maxAgeHours int) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM bot_sessions
		WHERE last_active < datetime('now', printf('-%d hours', ?))
	`, maxAgeHours)
	if err != nil {
		return 0, fmt.Errorf("sessionrepo: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// SetCurrentDirectory upserts the remembered directory for userID
// (spec §6.3).
func (r *Repo) SetCurrentDirectory(userID, directory string) error {
	_, err := r.db.Exec(`
		INSERT INTO users (user_id, current_directory, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			current_directory = excluded.current_directory,
			updated_at = CURRENT_TIMESTAMP
	`, userID, directory)
	if err != nil {
		return fmt.Errorf("sessionrepo: set current directory: %w", err)
	}
	return nil
}

// GetCurrentDirectory returns the remembered directory for userID, or
// "" if none is set.
func (r *Repo) GetCurrentDirectory(userID string) (string, error) {
	var dir string
	err := r.db.QueryRow(`SELECT current_directory FROM users WHERE user_id = ?`, userID).Scan(&dir)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sessionrepo: get current directory: %w", err)
	}
	return dir, nil
}
