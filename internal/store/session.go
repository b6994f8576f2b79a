package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionStore keeps server-side sessions in Postgres.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get returns the user bound to session id. Expired sessions are reported as ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (int, error) {
	var userID int
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE id = $1 AND expires_at > $2`,
		id, time.Now(),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

func (s *SessionStore) Set(ctx context.Context, id string, userID int, ttl time.Duration) error {
	const query = `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`
	_, err := s.db.ExecContext(ctx, query, id, userID, time.Now().Add(ttl))
	return err
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// Purge removes expired sessions and reports how many were deleted.
func (s *SessionStore) Purge(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
