// Package boltstore keeps users and sessions in a single bbolt file. Every
// mutation runs in bbolt's single writer transaction, which serialises rotations.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
	"go.etcd.io/bbolt"
)

var (
	bucketUsers        = []byte("users")
	bucketUsersByEmail = []byte("users_by_email")
	bucketSessions     = []byte("sessions")
	bucketUserSessions = []byte("user_sessions")
)

// Store implements session.Store and user.Store.
type Store struct {
	db *bbolt.DB
	// checkOwner rejects sessions whose user is not in the users bucket.
	checkOwner bool
}

// Option configures a Store.
type Option func(*Store)

// WithoutOwnerCheck lets sessions reference users kept elsewhere.
func WithoutOwnerCheck() Option {
	return func(s *Store) { s.checkOwner = false }
}

// Open opens or creates the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open: %w", err)
	}
	s := &Store{db: db, checkOwner: true}
	for _, opt := range opts {
		opt(s)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUsersByEmail, bucketSessions, bucketUserSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init: %w", err)
	}
	return s, nil
}

// Close closes the file.
func (s *Store) Close() error { return s.db.Close() }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}

// update maps non-sentinel failures to ErrStoreUnavailable.
func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	return classify(s.db.Update(fn))
}

func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	return classify(s.db.View(fn))
}

var sentinels = []error{
	session.ErrSessionNotFound,
	session.ErrSessionExpired,
	session.ErrNonceMismatch,
	session.ErrOwnerNotFound,
	session.ErrCorrupt,
	user.ErrNotFound,
	user.ErrEmailTaken,
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}
	return unavailable(err)
}

type sessionRecord struct {
	UserID    string `json:"user_id"`
	Nonce     string `json:"nonce"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func (r sessionRecord) session(id string) *session.Session {
	return &session.Session{
		ID:        id,
		UserID:    r.UserID,
		Nonce:     r.Nonce,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		ExpiresAt: time.UnixMilli(r.ExpiresAt),
	}
}

func indexKey(userID, sessionID string) []byte {
	return []byte(userID + "\x00" + sessionID)
}

func readSession(tx *bbolt.Tx, id string) (*sessionRecord, error) {
	raw := tx.Bucket(bucketSessions).Get([]byte(id))
	if raw == nil {
		return nil, session.ErrSessionNotFound
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCorrupt, err)
	}
	return &rec, nil
}

func writeSession(tx *bbolt.Tx, id string, rec *sessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketSessions).Put([]byte(id), data); err != nil {
		return err
	}
	return tx.Bucket(bucketUserSessions).Put(indexKey(rec.UserID, id), nil)
}

func deleteSession(tx *bbolt.Tx, id, userID string) error {
	if err := tx.Bucket(bucketSessions).Delete([]byte(id)); err != nil {
		return err
	}
	return tx.Bucket(bucketUserSessions).Delete(indexKey(userID, id))
}

// sessionIDs returns the indexed session IDs of userID.
func sessionIDs(tx *bbolt.Tx, userID string) []string {
	prefix := []byte(userID + "\x00")
	var ids []string
	c := tx.Bucket(bucketUserSessions).Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, string(k[len(prefix):]))
	}
	return ids
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// Create stores sess.
func (s *Store) Create(_ context.Context, sess *session.Session) error {
	return s.update(func(tx *bbolt.Tx) error {
		if s.checkOwner && tx.Bucket(bucketUsers).Get([]byte(sess.UserID)) == nil {
			return session.ErrOwnerNotFound
		}
		return writeSession(tx, sess.ID, &sessionRecord{
			UserID:    sess.UserID,
			Nonce:     sess.Nonce,
			CreatedAt: sess.CreatedAt.UnixMilli(),
			ExpiresAt: sess.ExpiresAt.UnixMilli(),
		})
	})
}

// Get returns the session or [session.ErrSessionNotFound].
func (s *Store) Get(_ context.Context, id string) (*session.Session, error) {
	var out *session.Session
	err := s.view(func(tx *bbolt.Tx) error {
		rec, err := readSession(tx, id)
		if err != nil {
			return err
		}
		out = rec.session(id)
		return nil
	})
	return out, err
}

// Rotate runs the compare-and-swap inside one write transaction.
func (s *Store) Rotate(_ context.Context, p session.RotateParams) (*session.Session, error) {
	var (
		out     *session.Session
		outcome error
	)
	err := s.update(func(tx *bbolt.Tx) error {
		rec, err := readSession(tx, p.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				outcome = err
				return nil
			}
			return err
		}
		if rec.Nonce != p.Nonce {
			outcome = session.ErrNonceMismatch
			if p.DeleteOnMismatch {
				return deleteSession(tx, p.SessionID, rec.UserID)
			}
			return nil
		}
		if rec.ExpiresAt <= p.Now.UnixMilli() {
			outcome = session.ErrSessionExpired
			return nil
		}
		rec.Nonce = p.NextNonce
		rec.ExpiresAt = p.ExpiresAt.UnixMilli()
		if err := writeSession(tx, p.SessionID, rec); err != nil {
			return err
		}
		out = rec.session(p.SessionID)
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

// ListByUser returns every stored session of userID.
func (s *Store) ListByUser(_ context.Context, userID string) ([]session.Session, error) {
	out := []session.Session{}
	err := s.view(func(tx *bbolt.Tx) error {
		for _, id := range sessionIDs(tx, userID) {
			rec, err := readSession(tx, id)
			if errors.Is(err, session.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, *rec.session(id))
		}
		return nil
	})
	return out, err
}

// DeleteByID removes one session.
func (s *Store) DeleteByID(_ context.Context, id string) (bool, error) {
	var existed bool
	err := s.update(func(tx *bbolt.Tx) error {
		rec, err := readSession(tx, id)
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return deleteSession(tx, id, rec.UserID)
	})
	return existed, err
}

// DeleteByUserNonce removes the session of userID holding nonce.
func (s *Store) DeleteByUserNonce(_ context.Context, userID, nonce string) (bool, error) {
	var existed bool
	err := s.update(func(tx *bbolt.Tx) error {
		for _, id := range sessionIDs(tx, userID) {
			rec, err := readSession(tx, id)
			if errors.Is(err, session.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.Nonce == nonce {
				existed = true
				return deleteSession(tx, id, userID)
			}
		}
		return nil
	})
	return existed, err
}

// DeleteAllForUser removes every session of userID.
func (s *Store) DeleteAllForUser(_ context.Context, userID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		for _, id := range sessionIDs(tx, userID) {
			if err := deleteSession(tx, id, userID); err != nil {
				return err
			}
		}
		return nil
	})
}
