package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
	"go.etcd.io/bbolt"
)

type userRecord struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	PasswordHash      string `json:"password_hash"`
	VerifiedAt        *int64 `json:"verified_at,omitempty"`
	PasswordChangedAt *int64 `json:"password_changed_at,omitempty"`
	CreatedAt         int64  `json:"created_at"`
}

func msPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMilli()
	return &v
}

func timePtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.UnixMilli(*v)
	return &t
}

func (r *userRecord) user(id string) *user.User {
	return &user.User{
		ID:                id,
		Name:              r.Name,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		VerifiedAt:        timePtr(r.VerifiedAt),
		PasswordChangedAt: timePtr(r.PasswordChangedAt),
		CreatedAt:         time.UnixMilli(r.CreatedAt),
	}
}

func readUser(tx *bbolt.Tx, id string) (*userRecord, error) {
	raw := tx.Bucket(bucketUsers).Get([]byte(id))
	if raw == nil {
		return nil, user.ErrNotFound
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCorrupt, err)
	}
	return &rec, nil
}

func writeUser(tx *bbolt.Tx, id string, rec *userRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put([]byte(id), data)
}

// CreateUser inserts u. The email index enforces uniqueness.
func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	email := user.NormalizeEmail(u.Email)
	return s.update(func(tx *bbolt.Tx) error {
		byEmail := tx.Bucket(bucketUsersByEmail)
		if byEmail.Get([]byte(email)) != nil {
			return user.ErrEmailTaken
		}
		if tx.Bucket(bucketUsers).Get([]byte(u.ID)) != nil {
			return fmt.Errorf("user id %q already exists", u.ID)
		}
		if err := byEmail.Put([]byte(email), []byte(u.ID)); err != nil {
			return err
		}
		return writeUser(tx, u.ID, &userRecord{
			Name:              u.Name,
			Email:             email,
			PasswordHash:      u.PasswordHash,
			VerifiedAt:        msPtr(u.VerifiedAt),
			PasswordChangedAt: msPtr(u.PasswordChangedAt),
			CreatedAt:         u.CreatedAt.UnixMilli(),
		})
	})
}

// GetUserByID returns the user or [user.ErrNotFound].
func (s *Store) GetUserByID(_ context.Context, id string) (*user.User, error) {
	var out *user.User
	err := s.view(func(tx *bbolt.Tx) error {
		rec, err := readUser(tx, id)
		if err != nil {
			return err
		}
		out = rec.user(id)
		return nil
	})
	return out, err
}

// GetUserByEmail looks up through the email index.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	var out *user.User
	err := s.view(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUsersByEmail).Get([]byte(user.NormalizeEmail(email)))
		if id == nil {
			return user.ErrNotFound
		}
		rec, err := readUser(tx, string(id))
		if err != nil {
			return err
		}
		out = rec.user(string(id))
		return nil
	})
	return out, err
}

func (s *Store) mutateUser(id string, fn func(*userRecord)) error {
	return s.update(func(tx *bbolt.Tx) error {
		rec, err := readUser(tx, id)
		if err != nil {
			return err
		}
		fn(rec)
		return writeUser(tx, id, rec)
	})
}

// MarkVerified sets the verification time.
func (s *Store) MarkVerified(_ context.Context, id string, at time.Time) error {
	return s.mutateUser(id, func(r *userRecord) {
		r.VerifiedAt = msPtr(&at)
	})
}

// UpdatePassword replaces the hash and stamps the change time.
func (s *Store) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return s.mutateUser(id, func(r *userRecord) {
		r.PasswordHash = hash
		r.PasswordChangedAt = msPtr(&at)
	})
}
