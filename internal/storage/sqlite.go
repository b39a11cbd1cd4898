package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/codelod/internal/models"
)

// busyTimeoutMS is how long a writer waits for another connection's write to finish.
const busyTimeoutMS = 10000

// SQLiteStorage implements Storage using SQLite in WAL mode.
// Every write is a single autocommit statement, so writers to the same hash are
// serialized by SQLite and writers to different hashes only wait for one statement.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate", dbPath, busyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS descriptions (
		hash TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		stale BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		hash_history TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_descriptions_stale ON descriptions(stale);

	CREATE TABLE IF NOT EXISTS entity_hashes (
		path TEXT NOT NULL,
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		hash TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (path, scope, name)
	);

	CREATE INDEX IF NOT EXISTS idx_entity_hashes_hash ON entity_hashes(hash);
	`
	_, err := db.Exec(schema)
	return err
}

const recordColumns = `hash, description, stale, created_at, updated_at, hash_history`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.DescriptionRecord, error) {
	var rec models.DescriptionRecord
	var historyJSON string
	if err := row.Scan(&rec.Hash, &rec.Description, &rec.Stale, &rec.CreatedAt, &rec.UpdatedAt, &historyJSON); err != nil {
		return nil, err
	}
	if historyJSON != "" {
		if err := json.Unmarshal([]byte(historyJSON), &rec.HashHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hash history: %w", err)
		}
	}
	return &rec, nil
}

// Get returns the record for hash, or ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, hash string) (*models.DescriptionRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM descriptions WHERE hash = ?`, hash,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Set inserts a record with created_at = updated_at = now, or updates it in place.
func (s *SQLiteStorage) Set(ctx context.Context, hash, description string, stale bool, history []string) error {
	var historyArg any
	if history != nil {
		b, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("failed to marshal hash history: %w", err)
		}
		historyArg = string(b)
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO descriptions (hash, description, stale, created_at, updated_at, hash_history)
		 VALUES (?1, ?2, ?3, ?4, ?4, COALESCE(?5, '[]'))
		 ON CONFLICT(hash) DO UPDATE SET
			description = excluded.description,
			stale = excluded.stale,
			updated_at = excluded.updated_at,
			hash_history = COALESCE(?5, descriptions.hash_history)`,
		hash, description, stale, now, historyArg,
	)
	if err != nil {
		return fmt.Errorf("failed to set description %s: %w", hash, err)
	}
	return nil
}

// MarkStale flags the record as stale. Unknown hashes are ignored.
func (s *SQLiteStorage) MarkStale(ctx context.Context, hash string) error {
	return s.setStale(ctx, hash, true)
}

// MarkFresh clears the stale flag. Unknown hashes are ignored.
func (s *SQLiteStorage) MarkFresh(ctx context.Context, hash string) error {
	return s.setStale(ctx, hash, false)
}

func (s *SQLiteStorage) setStale(ctx context.Context, hash string, stale bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE descriptions SET stale = ?, updated_at = ? WHERE hash = ?`,
		stale, time.Now().UTC(), hash,
	)
	return err
}

// ListStale returns every stale record, oldest update first.
func (s *SQLiteStorage) ListStale(ctx context.Context) ([]*models.DescriptionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM descriptions WHERE stale = TRUE ORDER BY updated_at, hash`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.DescriptionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes a record by hash.
func (s *SQLiteStorage) Delete(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM descriptions WHERE hash = ?`, hash)
	return err
}

// BoundHash returns the hash key is currently bound to, or "" if unbound.
func (s *SQLiteStorage) BoundHash(ctx context.Context, key models.EntityKey) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT hash FROM entity_hashes WHERE path = ? AND scope = ? AND name = ?`,
		key.Path, string(key.Scope), key.Name,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// Bind points key at hash.
func (s *SQLiteStorage) Bind(ctx context.Context, key models.EntityKey, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_hashes (path, scope, name, hash, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path, scope, name) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		key.Path, string(key.Scope), key.Name, hash, time.Now().UTC(),
	)
	return err
}

// UnbindFile removes every binding for entities of the file at path.
func (s *SQLiteStorage) UnbindFile(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entity_hashes WHERE path = ?`, path)
	return err
}

// MarkStaleUnbound flags the record as stale unless some entity is still bound to it.
func (s *SQLiteStorage) MarkStaleUnbound(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE descriptions SET stale = TRUE, updated_at = ?
		 WHERE hash = ? AND NOT EXISTS (SELECT 1 FROM entity_hashes WHERE hash = ?)`,
		time.Now().UTC(), hash, hash,
	)
	return err
}

// PurgeUnbound deletes records that no entity binding points to and returns how many were removed.
func (s *SQLiteStorage) PurgeUnbound(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM descriptions WHERE hash NOT IN (SELECT DISTINCT hash FROM entity_hashes)`,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of records and how many of them are stale.
func (s *SQLiteStorage) Count(ctx context.Context) (total, stale int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN stale THEN 1 ELSE 0 END), 0) FROM descriptions`,
	).Scan(&total, &stale)
	return total, stale, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
