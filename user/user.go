// Package user defines the account record the engine authenticates and the
// persistence contract backends implement for it.
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the normalized email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// User is one account. Email is stored normalized (see [NormalizeEmail]).
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	VerifiedAt        *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// Verified reports whether the email address was confirmed.
func (u *User) Verified() bool {
	return u.VerifiedAt != nil
}

// Store persists accounts. Implementations map their unique-email violation to
// [ErrEmailTaken] and a missing row to [ErrNotFound].
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	MarkVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
