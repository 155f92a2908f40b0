package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tradeforge/riskcore/internal/riskerr"
	"github.com/tradeforge/riskcore/internal/session"
)

// CreateSession persists a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sessions (id, initial_balance, status, started_at, ended_at)
		VALUES (:id, :initial_balance, :status, :started_at, :ended_at)`, sess)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "create_session", "insert session", err)
	}
	return nil
}

// ActiveSession returns the currently active session, or nil when no
// session is running.
func (s *Store) ActiveSession(ctx context.Context) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var sess session.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, initial_balance, status, started_at, ended_at
		FROM sessions
		WHERE status = $1
		ORDER BY started_at DESC
		LIMIT 1`, session.StatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, riskerr.Wrap(riskerr.CategoryPersistence, "storage", "active_session", "query active session", err)
	}
	return &sess, nil
}

// UpdateSession writes the session's mutable fields back.
func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		UPDATE sessions
		SET status = :status, ended_at = :ended_at
		WHERE id = :id`, sess)
	if err != nil {
		return riskerr.Wrap(riskerr.CategoryPersistence, "storage", "update_session", "update session", err)
	}
	return nil
}
