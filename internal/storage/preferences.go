package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Preferences is the SQLite-backed key-value store.
type Preferences struct {
	q *Queries
}

// Preferences returns the key-value store sharing this database.
func (r *Repository) Preferences() *Preferences {
	return &Preferences{q: r.queries}
}

// Get returns the stored value and whether the key exists.
func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.q.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, true, nil
}

func (p *Preferences) Set(ctx context.Context, key, value string) error {
	_, err := p.q.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%s','now')`,
		key, value)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}
