package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/session/sessiontest"
	"github.com/MrEthical07/sessionauth/user"
)

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "auth.db"), opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(s *Store) func(t *testing.T, id string) {
	return func(t *testing.T, id string) {
		t.Helper()
		if err := s.CreateUser(context.Background(), &user.User{
			ID: id, Name: id, Email: id + "@example.com", PasswordHash: "h", CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

func TestBoltSessionStoreSuite(t *testing.T) {
	sessiontest.RunStoreSuite(t, func(t *testing.T) sessiontest.Harness {
		s := openStore(t)
		return sessiontest.Harness{Store: s, SeedUser: seedUser(s)}
	})
}

func TestOwnerCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	sess := &session.Session{ID: "s1", UserID: "ghost", Nonce: "n", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	strict := openStore(t)
	if err := strict.Create(ctx, sess); !errors.Is(err, session.ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}

	loose := openStore(t, WithoutOwnerCheck())
	if err := loose.Create(ctx, sess); err != nil {
		t.Fatalf("create without owner check: %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	created := time.UnixMilli(time.Now().UnixMilli())

	if err := s.CreateUser(ctx, &user.User{ID: "u1", Name: "Alice", Email: "Alice@Example.com", PasswordHash: "h1", CreatedAt: created}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, &user.User{ID: "u2", Email: "alice@example.com", CreatedAt: created}); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != "u1" || got.Email != "alice@example.com" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := s.GetUserByID(ctx, "nope"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := created.Add(time.Minute)
	if err := s.MarkVerified(ctx, "u1", at); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.UpdatePassword(ctx, "u1", "h2", at); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := s.UpdatePassword(ctx, "nope", "h2", at); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err = s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if !got.Verified() || got.PasswordHash != "h2" || got.PasswordChangedAt == nil || !got.PasswordChangedAt.Equal(at) {
		t.Fatalf("updates not persisted: %+v", got)
	}
}

func TestReopenKeepsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	s, err := Open(path, WithoutOwnerCheck())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	now := sessiontest.Base()
	if err := s.Create(context.Background(), &session.Session{ID: "s1", UserID: "u1", Nonce: "n", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Nonce != "n" || !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected session %+v", got)
	}
}
