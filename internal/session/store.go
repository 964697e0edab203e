package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Durable storage keys. Only this package writes them.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store persists the session keys across console restarts.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// SQLStore keeps the session keys in a small key-value table, working
// against both the SQLite file default and a Postgres DSN.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the backing table when missing. Run once on startup.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	const ddl = `create table if not exists session_store (
		key text primary key,
		value text not null,
		updated_at timestamp not null
	)`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Save upserts one key.
func (s *SQLStore) Save(ctx context.Context, key, value string) error {
	const q = `insert into session_store (key, value, updated_at) values ($1, $2, $3)
		on conflict (key) do update set value = $2, updated_at = $3`
	_, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC())
	return err
}

// Load reads one key; the second result reports presence.
func (s *SQLStore) Load(ctx context.Context, key string) (string, bool, error) {
	const q = `select value from session_store where key = $1`
	var value string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Delete removes the given keys; missing keys are not an error.
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	const q = `delete from session_store where key = $1`
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, q, key); err != nil {
			return err
		}
	}
	return nil
}
