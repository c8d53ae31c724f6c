package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

const tokenColumns = `id, family_id, user_id, token, created_at, expires_at, revoked_at, replaced_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*session.RefreshToken, error) {
	var (
		t                session.RefreshToken
		created, expires int64
		revoked          sql.NullInt64
		replaced         sql.NullString
	)
	if err := row.Scan(&t.ID, &t.FamilyID, &t.UserID, &t.Token, &created, &expires, &revoked, &replaced); err != nil {
		return nil, err
	}
	t.CreatedAt = fromMillis(created)
	t.ExpiresAt = fromMillis(expires)
	t.RevokedAt = timePtr(revoked)
	if replaced.Valid {
		v := replaced.String
		t.ReplacedBy = &v
	}
	return &t, nil
}

func (s *DB) getToken(ctx context.Context, q DBTX, id string) (*session.RefreshToken, error) {
	t, err := scanToken(q.QueryRowContext(ctx, s.rebind(`SELECT `+tokenColumns+` FROM refresh_tokens WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, unavailable(err)
	}
	return t, nil
}

// CreateToken inserts the first link of a chain.
func (s *DB) CreateToken(ctx context.Context, t *session.RefreshToken) error {
	family := t.FamilyID
	if family == "" {
		family = t.ID
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO refresh_tokens (id, family_id, user_id, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		t.ID, family, t.UserID, t.Token, millis(t.CreatedAt), millis(t.ExpiresAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return session.ErrOwnerNotFound
		}
		return unavailable(err)
	}
	return nil
}

// GetToken returns the row regardless of its state.
func (s *DB) GetToken(ctx context.Context, id string) (*session.RefreshToken, error) {
	return s.getToken(ctx, s.db, id)
}

func (s *DB) revokeFamily(ctx context.Context, q DBTX, familyID string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, s.rebind(`
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE family_id = ? AND revoked_at IS NULL`), millis(now), familyID)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// RotateToken marks the presented row revoked and replaced, then inserts its
// successor, in one transaction.
func (s *DB) RotateToken(ctx context.Context, p session.RotateParams) (*session.RefreshToken, error) {
	var out *session.RefreshToken
	var outcome error
	err := s.withTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE refresh_tokens SET revoked_at = ?, replaced_by = ?
			WHERE id = ? AND token = ? AND revoked_at IS NULL AND replaced_by IS NULL AND expires_at > ?`),
			millis(p.Now), p.NewID, p.SessionID, p.Nonce, millis(p.Now),
		)
		if err != nil {
			return unavailable(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err)
		}

		old, err := s.getToken(ctx, tx, p.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				outcome = err
				return nil
			}
			return err
		}

		if n == 1 {
			next := &session.RefreshToken{
				ID:        p.NewID,
				FamilyID:  old.FamilyID,
				UserID:    old.UserID,
				Token:     p.NextNonce,
				CreatedAt: p.Now,
				ExpiresAt: p.ExpiresAt,
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO refresh_tokens (id, family_id, user_id, token, created_at, expires_at)
				VALUES (?, ?, ?, ?, ?, ?)`),
				next.ID, next.FamilyID, next.UserID, next.Token, millis(next.CreatedAt), millis(next.ExpiresAt),
			); err != nil {
				return unavailable(err)
			}
			next.CreatedAt = fromMillis(millis(next.CreatedAt))
			next.ExpiresAt = fromMillis(millis(next.ExpiresAt))
			out = next
			return nil
		}

		switch {
		case old.ReplacedBy != nil || old.Token != p.Nonce:
			outcome = session.ErrNonceMismatch
			if p.DeleteOnMismatch {
				if _, err := s.revokeFamily(ctx, tx, old.FamilyID, p.Now); err != nil {
					return err
				}
			}
		case old.RevokedAt != nil:
			outcome = session.ErrSessionNotFound
		default:
			outcome = session.ErrSessionExpired
		}
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

// ListActiveTokens returns the valid rows of userID at now.
func (s *DB) ListActiveTokens(ctx context.Context, userID string, now time.Time) ([]session.RefreshToken, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+tokenColumns+` FROM refresh_tokens
		WHERE user_id = ? AND revoked_at IS NULL AND replaced_by IS NULL AND expires_at > ?
		ORDER BY created_at, id`), userID, millis(now))
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []session.RefreshToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// RevokeToken revokes the family of row id. It reports whether anything was live.
func (s *DB) RevokeToken(ctx context.Context, id string, now time.Time) (bool, error) {
	var revoked bool
	err := s.withTx(ctx, func(tx DBTX) error {
		t, err := s.getToken(ctx, tx, id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil
			}
			return err
		}
		n, err := s.revokeFamily(ctx, tx, t.FamilyID, now)
		revoked = n > 0
		return err
	})
	return revoked, err
}

// RevokeByUserToken revokes the family whose current row belongs to userID and
// holds token.
func (s *DB) RevokeByUserToken(ctx context.Context, userID, token string, now time.Time) (bool, error) {
	var revoked bool
	err := s.withTx(ctx, func(tx DBTX) error {
		var family string
		err := tx.QueryRowContext(ctx, s.rebind(`
			SELECT family_id FROM refresh_tokens
			WHERE user_id = ? AND token = ? AND revoked_at IS NULL AND replaced_by IS NULL`),
			userID, token,
		).Scan(&family)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return unavailable(err)
		}
		n, err := s.revokeFamily(ctx, tx, family, now)
		revoked = n > 0
		return err
	})
	return revoked, err
}

// RevokeAllForUser revokes every live row of userID.
func (s *DB) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL`), millis(now), userID)
	if err != nil {
		return unavailable(err)
	}
	return nil
}
