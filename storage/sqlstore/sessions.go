package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrEthical07/sessionauth/session"
)

// Create inserts a session. An unknown owner maps to [session.ErrOwnerNotFound].
func (s *DB) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sessions (id, user_id, nonce, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`),
		sess.ID, sess.UserID, sess.Nonce, millis(sess.CreatedAt), millis(sess.ExpiresAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return session.ErrOwnerNotFound
		}
		return unavailable(err)
	}
	return nil
}

func (s *DB) getSession(ctx context.Context, q DBTX, id string) (*session.Session, error) {
	var (
		sess             session.Session
		created, expires int64
	)
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, nonce, created_at, expires_at FROM sessions WHERE id = ?`), id,
	).Scan(&sess.ID, &sess.UserID, &sess.Nonce, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, unavailable(err)
	}
	sess.CreatedAt = fromMillis(created)
	sess.ExpiresAt = fromMillis(expires)
	return &sess, nil
}

// Get returns the session or [session.ErrSessionNotFound].
func (s *DB) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.getSession(ctx, s.db, id)
}

// Rotate applies the conditional update guarded by id, nonce and expiry. When no
// row matched, the row is re-read in the same transaction to classify the failure.
func (s *DB) Rotate(ctx context.Context, p session.RotateParams) (*session.Session, error) {
	var out *session.Session
	var outcome error
	err := s.withTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE sessions SET nonce = ?, expires_at = ?
			WHERE id = ? AND nonce = ? AND expires_at > ?`),
			p.NextNonce, millis(p.ExpiresAt), p.SessionID, p.Nonce, millis(p.Now),
		)
		if err != nil {
			return unavailable(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err)
		}

		cur, err := s.getSession(ctx, tx, p.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				outcome = err
				return nil
			}
			return err
		}
		if n == 1 {
			out = cur
			return nil
		}

		if cur.Nonce != p.Nonce {
			outcome = session.ErrNonceMismatch
			if p.DeleteOnMismatch {
				if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE id = ?`), p.SessionID); err != nil {
					return unavailable(err)
				}
			}
			return nil
		}
		outcome = session.ErrSessionExpired
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return out, nil
}

// ListByUser returns every stored session of userID, expired ones included.
func (s *DB) ListByUser(ctx context.Context, userID string) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, nonce, created_at, expires_at FROM sessions
		WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []session.Session{}
	for rows.Next() {
		var (
			sess             session.Session
			created, expires int64
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Nonce, &created, &expires); err != nil {
			return nil, unavailable(err)
		}
		sess.CreatedAt = fromMillis(created)
		sess.ExpiresAt = fromMillis(expires)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *DB) deleteSessions(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return false, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// DeleteByID removes one session.
func (s *DB) DeleteByID(ctx context.Context, id string) (bool, error) {
	return s.deleteSessions(ctx, `DELETE FROM sessions WHERE id = ?`, id)
}

// DeleteByUserNonce removes the session of userID holding nonce.
func (s *DB) DeleteByUserNonce(ctx context.Context, userID, nonce string) (bool, error) {
	return s.deleteSessions(ctx, `DELETE FROM sessions WHERE user_id = ? AND nonce = ?`, userID, nonce)
}

// DeleteAllForUser removes every session of userID.
func (s *DB) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.deleteSessions(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}
