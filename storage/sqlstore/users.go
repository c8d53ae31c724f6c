package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionauth/user"
)

const userColumns = `id, name, email, password_hash, verified_at, password_changed_at, created_at`

// CreateUser inserts u. A duplicate email maps to [user.ErrEmailTaken].
func (s *DB) CreateUser(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, u.Email, u.PasswordHash,
		nullMillis(u.VerifiedAt), nullMillis(u.PasswordChangedAt), millis(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return unavailable(err)
	}
	return nil
}

func scanUser(row *sql.Row) (*user.User, error) {
	var (
		u                 user.User
		verified, changed sql.NullInt64
		created           int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &verified, &changed, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, unavailable(err)
	}
	u.VerifiedAt = timePtr(verified)
	u.PasswordChangedAt = timePtr(changed)
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// GetUserByID returns the user or [user.ErrNotFound].
func (s *DB) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return scanUser(row)
}

// GetUserByEmail looks up by the normalized address.
func (s *DB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), user.NormalizeEmail(email))
	return scanUser(row)
}

func (s *DB) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// MarkVerified sets verified_at.
func (s *DB) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return s.updateUser(ctx, `UPDATE users SET verified_at = ? WHERE id = ?`, millis(at), id)
}

// UpdatePassword replaces the hash and stamps password_changed_at.
func (s *DB) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	if hash == "" {
		return fmt.Errorf("sqlstore: empty password hash")
	}
	return s.updateUser(ctx, `UPDATE users SET password_hash = ?, password_changed_at = ? WHERE id = ?`, hash, millis(at), id)
}
