package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn, Postgres), mock
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := New(nil, SQLite)
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestPostgresCreateUserUniqueViolation(t *testing.T) {
	db, mock := newPostgresMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email"})

	err := db.CreateUser(context.Background(), &user.User{ID: "u1", Email: "a@example.com", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateSessionForeignKey(t *testing.T) {
	db, mock := newPostgresMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+sessions`).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	now := time.Now()
	err := db.Create(context.Background(), &session.Session{ID: "s1", UserID: "ghost", Nonce: "n", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, session.ErrOwnerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateConditionalUpdate(t *testing.T) {
	db, mock := newPostgresMock(t)
	now := time.UnixMilli(1_700_000_000_000)
	exp := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+nonce\s*=\s*\$1,\s*expires_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s+AND\s+nonce\s*=\s*\$4\s+AND\s+expires_at\s*>\s*\$5`).
		WithArgs("n1", exp.UnixMilli(), "s1", "n0", now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id,\s*nonce,\s*created_at,\s*expires_at\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "nonce", "created_at", "expires_at"}).
			AddRow("s1", "u1", "n1", now.Add(-time.Hour).UnixMilli(), exp.UnixMilli()))
	mock.ExpectCommit()

	got, err := db.Rotate(context.Background(), session.RotateParams{
		SessionID: "s1", Nonce: "n0", NextNonce: "n1", Now: now, ExpiresAt: exp,
	})
	require.NoError(t, err)
	assert.Equal(t, "n1", got.Nonce)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateMismatchDeletes(t *testing.T) {
	db, mock := newPostgresMock(t)
	now := time.UnixMilli(1_700_000_000_000)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE\s+sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "nonce", "created_at", "expires_at"}).
			AddRow("s1", "u1", "current", now.UnixMilli(), now.Add(time.Hour).UnixMilli()))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := db.Rotate(context.Background(), session.RotateParams{
		SessionID: "s1", Nonce: "stale", NextNonce: "n1", Now: now, ExpiresAt: now.Add(time.Hour), DeleteOnMismatch: true,
	})
	assert.ErrorIs(t, err, session.ErrNonceMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotateRollsBackOnFailure(t *testing.T) {
	db, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE\s+sessions`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	now := time.Now()
	_, err := db.Rotate(context.Background(), session.RotateParams{
		SessionID: "s1", Nonce: "n0", NextNonce: "n1", Now: now, ExpiresAt: now.Add(time.Hour),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	assert.Regexp(t, regexp.MustCompile(`connection reset`), err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}
