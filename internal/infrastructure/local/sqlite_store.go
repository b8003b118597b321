// Package local holds the device-local key-value stores backing the offline
// queue and the auth setup record.
package local

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sangkips/smartbill/internal/domain/repository"
)

// SQLiteStore is a KVStore over a single sqlite table
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Update runs inside BEGIN IMMEDIATE, which takes the database write lock up
// front; other processes wait on busy_timeout instead of interleaving.
func (s *SQLiteStore) Update(ctx context.Context, key string, fn repository.KVUpdateFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()

	var cur string
	exists := true
	switch qerr := conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&cur); {
	case errors.Is(qerr, sql.ErrNoRows):
		exists = false
	case qerr != nil:
		return qerr
	}

	next, keep, err := fn(cur, exists)
	if err != nil {
		return err
	}
	if keep {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, next, time.Now().UTC())
	} else {
		_, err = conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	}
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `COMMIT`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
