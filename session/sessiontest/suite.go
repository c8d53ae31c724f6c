// Package sessiontest holds behavioural suites shared by every session backend.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

// Harness is one freshly initialised backend.
type Harness struct {
	Store session.Store
	// SeedUser registers userID as a valid owner. Nil when the backend has no
	// owner check.
	SeedUser func(t *testing.T, userID string)
}

// ChainHarness is one freshly initialised chain backend.
type ChainHarness struct {
	Store    session.ChainStore
	SeedUser func(t *testing.T, userID string)
}

func seed(t *testing.T, fn func(*testing.T, string), ids ...string) {
	t.Helper()
	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(t, id)
	}
}

// Base returns a millisecond-aligned now so stored timestamps compare equal.
func Base() time.Time {
	return time.UnixMilli(time.Now().UnixMilli())
}

func newSession(id, userID, nonce string, now time.Time) *session.Session {
	return &session.Session{
		ID:        id,
		UserID:    userID,
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

// RunStoreSuite exercises a [session.Store] implementation.
func RunStoreSuite(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("CreateGet", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		in := newSession("s1", "u1", "nonce-aaaaaaaaaa", now)
		if err := h.Store.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := h.Store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.UserID != "u1" || got.Nonce != in.Nonce {
			t.Fatalf("unexpected session %+v", got)
		}
		if !got.CreatedAt.Equal(in.CreatedAt) || !got.ExpiresAt.Equal(in.ExpiresAt) {
			t.Fatalf("timestamps changed: got %v/%v want %v/%v", got.CreatedAt, got.ExpiresAt, in.CreatedAt, in.ExpiresAt)
		}
		if _, err := h.Store.Get(ctx, "missing"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("RotateSucceeds", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		later := now.Add(10 * time.Minute)
		got, err := h.Store.Rotate(ctx, session.RotateParams{
			SessionID: "s1",
			Nonce:     "n0",
			NextNonce: "n1",
			Now:       later,
			ExpiresAt: later.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if got.Nonce != "n1" || got.UserID != "u1" || !got.ExpiresAt.Equal(later.Add(time.Hour)) {
			t.Fatalf("unexpected rotated session %+v", got)
		}
		if !got.CreatedAt.Equal(now) {
			t.Fatalf("created_at changed: %v", got.CreatedAt)
		}
		stored, err := h.Store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if stored.Nonce != "n1" {
			t.Fatalf("stored nonce %q, want n1", stored.Nonce)
		}
	})

	t.Run("RotateMissing", func(t *testing.T) {
		h := newHarness(t)
		now := Base()
		_, err := h.Store.Rotate(context.Background(), session.RotateParams{
			SessionID: "nope", Nonce: "a", NextNonce: "b", Now: now, ExpiresAt: now.Add(time.Hour),
		})
		if !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("RotateMismatchDeletes", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := h.Store.Rotate(ctx, session.RotateParams{
			SessionID: "s1", Nonce: "stale", NextNonce: "n1", Now: now, ExpiresAt: now.Add(time.Hour),
			DeleteOnMismatch: true,
		})
		if !errors.Is(err, session.ErrNonceMismatch) {
			t.Fatalf("expected ErrNonceMismatch, got %v", err)
		}
		if _, err := h.Store.Get(ctx, "s1"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("session should be gone, got %v", err)
		}
		list, err := h.Store.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected empty listing, got %d", len(list))
		}
	})

	t.Run("RotateMismatchRejects", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := h.Store.Rotate(ctx, session.RotateParams{
			SessionID: "s1", Nonce: "stale", NextNonce: "n1", Now: now, ExpiresAt: now.Add(time.Hour),
		})
		if !errors.Is(err, session.ErrNonceMismatch) {
			t.Fatalf("expected ErrNonceMismatch, got %v", err)
		}
		got, err := h.Store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("session should survive: %v", err)
		}
		if got.Nonce != "n0" {
			t.Fatalf("nonce changed to %q", got.Nonce)
		}
	})

	t.Run("RotateExpiredKeepsRow", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		future := now.Add(2 * time.Hour)
		_, err := h.Store.Rotate(ctx, session.RotateParams{
			SessionID: "s1", Nonce: "n0", NextNonce: "n1", Now: future, ExpiresAt: future.Add(time.Hour),
			DeleteOnMismatch: true,
		})
		if !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		got, err := h.Store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("expired row should be kept: %v", err)
		}
		if got.Nonce != "n0" {
			t.Fatalf("nonce changed to %q", got.Nonce)
		}
	})

	t.Run("ConcurrentRotateSingleWinner", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}

		const workers = 16
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			winners  int
			mismatch int
			others   []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := h.Store.Rotate(ctx, session.RotateParams{
					SessionID: "s1",
					Nonce:     "n0",
					NextNonce: fmt.Sprintf("next-%02d", i),
					Now:       now,
					ExpiresAt: now.Add(time.Hour),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, session.ErrNonceMismatch):
					mismatch++
				default:
					others = append(others, err)
				}
			}(i)
		}
		wg.Wait()

		if len(others) > 0 {
			t.Fatalf("unexpected errors: %v", others)
		}
		if winners != 1 || mismatch != workers-1 {
			t.Fatalf("expected 1 winner and %d mismatches, got %d/%d", workers-1, winners, mismatch)
		}
	})

	t.Run("ListByUser", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1", "u2")
		ctx := context.Background()
		now := Base()
		for _, s := range []*session.Session{
			newSession("a", "u1", "na", now),
			newSession("b", "u1", "nb", now),
			newSession("c", "u2", "nc", now),
		} {
			if err := h.Store.Create(ctx, s); err != nil {
				t.Fatalf("create %s: %v", s.ID, err)
			}
		}
		list, err := h.Store.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		ids := map[string]bool{}
		for _, s := range list {
			if s.UserID != "u1" {
				t.Fatalf("listed foreign session %+v", s)
			}
			ids[s.ID] = true
		}
		if len(ids) != 2 || !ids["a"] || !ids["b"] {
			t.Fatalf("unexpected listing %v", ids)
		}
		empty, err := h.Store.ListByUser(ctx, "nobody")
		if err != nil {
			t.Fatalf("list empty: %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("expected no sessions, got %d", len(empty))
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.Create(ctx, newSession("s1", "u1", "n1", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := h.Store.Create(ctx, newSession("s2", "u1", "n2", now)); err != nil {
			t.Fatalf("create: %v", err)
		}

		if ok, err := h.Store.DeleteByID(ctx, "s1"); err != nil || !ok {
			t.Fatalf("first delete: ok=%v err=%v", ok, err)
		}
		if ok, err := h.Store.DeleteByID(ctx, "s1"); err != nil || ok {
			t.Fatalf("second delete: ok=%v err=%v", ok, err)
		}

		if ok, err := h.Store.DeleteByUserNonce(ctx, "u1", "wrong"); err != nil || ok {
			t.Fatalf("delete by wrong nonce: ok=%v err=%v", ok, err)
		}
		if ok, err := h.Store.DeleteByUserNonce(ctx, "u1", "n2"); err != nil || !ok {
			t.Fatalf("delete by nonce: ok=%v err=%v", ok, err)
		}
		if ok, err := h.Store.DeleteByUserNonce(ctx, "u1", "n2"); err != nil || ok {
			t.Fatalf("repeat delete by nonce: ok=%v err=%v", ok, err)
		}

		list, err := h.Store.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected no sessions, got %d", len(list))
		}
	})

	t.Run("DeleteAllForUser", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1", "u2")
		ctx := context.Background()
		now := Base()
		for _, s := range []*session.Session{
			newSession("a", "u1", "na", now),
			newSession("b", "u1", "nb", now),
			newSession("c", "u2", "nc", now),
		} {
			if err := h.Store.Create(ctx, s); err != nil {
				t.Fatalf("create %s: %v", s.ID, err)
			}
		}
		if err := h.Store.DeleteAllForUser(ctx, "u1"); err != nil {
			t.Fatalf("delete all: %v", err)
		}
		if err := h.Store.DeleteAllForUser(ctx, "u1"); err != nil {
			t.Fatalf("repeat delete all: %v", err)
		}
		for _, id := range []string{"a", "b"} {
			if _, err := h.Store.Get(ctx, id); !errors.Is(err, session.ErrSessionNotFound) {
				t.Fatalf("session %s should be gone, got %v", id, err)
			}
		}
		if _, err := h.Store.Get(ctx, "c"); err != nil {
			t.Fatalf("other user's session removed: %v", err)
		}
	})
}

func newToken(id, userID, token string, now time.Time) *session.RefreshToken {
	return &session.RefreshToken{
		ID:        id,
		FamilyID:  id,
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func rotateChain(ctx context.Context, store session.ChainStore, id, token, next, newID string, now time.Time, del bool) (*session.RefreshToken, error) {
	return store.RotateToken(ctx, session.RotateParams{
		SessionID:        id,
		Nonce:            token,
		NextNonce:        next,
		Now:              now,
		ExpiresAt:        now.Add(time.Hour),
		DeleteOnMismatch: del,
		NewID:            newID,
	})
}

// RunChainSuite exercises a [session.ChainStore] implementation.
func RunChainSuite(t *testing.T, newHarness func(t *testing.T) ChainHarness) {
	t.Run("RotateLinksChain", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		next, err := rotateChain(ctx, h.Store, "t1", "n0", "n1", "t2", now, true)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if next.ID != "t2" || next.FamilyID != "t1" || next.Token != "n1" || !next.Valid(now) {
			t.Fatalf("unexpected successor %+v", next)
		}
		old, err := h.Store.GetToken(ctx, "t1")
		if err != nil {
			t.Fatalf("get old: %v", err)
		}
		if old.RevokedAt == nil || old.ReplacedBy == nil || *old.ReplacedBy != "t2" {
			t.Fatalf("old row not linked: %+v", old)
		}
		active, err := h.Store.ListActiveTokens(ctx, "u1", now)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 1 || active[0].ID != "t2" {
			t.Fatalf("expected only t2 active, got %+v", active)
		}
	})

	t.Run("ReuseRevokesFamily", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := rotateChain(ctx, h.Store, "t1", "n0", "n1", "t2", now, true); err != nil {
			t.Fatalf("rotate: %v", err)
		}
		_, err := rotateChain(ctx, h.Store, "t1", "n0", "evil", "t3", now, true)
		if !errors.Is(err, session.ErrNonceMismatch) {
			t.Fatalf("expected ErrNonceMismatch on reuse, got %v", err)
		}
		cur, err := h.Store.GetToken(ctx, "t2")
		if err != nil {
			t.Fatalf("get successor: %v", err)
		}
		if cur.RevokedAt == nil {
			t.Fatal("successor should be revoked after reuse")
		}
		if _, err := h.Store.GetToken(ctx, "t3"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("attacker row must not exist, got %v", err)
		}
		active, err := h.Store.ListActiveTokens(ctx, "u1", now)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 0 {
			t.Fatalf("expected family revoked, got %d active", len(active))
		}
	})

	t.Run("ReuseRejectKeepsSuccessor", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := rotateChain(ctx, h.Store, "t1", "n0", "n1", "t2", now, true); err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if _, err := rotateChain(ctx, h.Store, "t1", "n0", "x", "t3", now, false); !errors.Is(err, session.ErrNonceMismatch) {
			t.Fatalf("expected ErrNonceMismatch, got %v", err)
		}
		cur, err := h.Store.GetToken(ctx, "t2")
		if err != nil {
			t.Fatalf("get successor: %v", err)
		}
		if !cur.Valid(now) {
			t.Fatalf("successor should stay valid: %+v", cur)
		}
	})

	t.Run("WrongTokenOnCurrentRow", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := rotateChain(ctx, h.Store, "t1", "bad", "n1", "t2", now, true); !errors.Is(err, session.ErrNonceMismatch) {
			t.Fatalf("expected ErrNonceMismatch, got %v", err)
		}
		tok, err := h.Store.GetToken(ctx, "t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if tok.RevokedAt == nil {
			t.Fatal("row should be revoked under the delete policy")
		}
	})

	t.Run("MissingRevokedExpired", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if _, err := rotateChain(ctx, h.Store, "none", "n0", "n1", "x", now, true); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}

		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		future := now.Add(2 * time.Hour)
		if _, err := rotateChain(ctx, h.Store, "t1", "n0", "n1", "t2", future, true); !errors.Is(err, session.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}

		if ok, err := h.Store.RevokeToken(ctx, "t1", now); err != nil || !ok {
			t.Fatalf("revoke: ok=%v err=%v", ok, err)
		}
		if ok, err := h.Store.RevokeToken(ctx, "t1", now); err != nil || ok {
			t.Fatalf("repeat revoke: ok=%v err=%v", ok, err)
		}
		if _, err := rotateChain(ctx, h.Store, "t1", "n0", "n1", "t2", now, true); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("revoked row should read as not found, got %v", err)
		}
	})

	t.Run("ConcurrentRotateSingleWinner", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1")
		ctx := context.Background()
		now := Base()
		if err := h.Store.CreateToken(ctx, newToken("t1", "u1", "n0", now)); err != nil {
			t.Fatalf("create: %v", err)
		}
		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
			others  []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := rotateChain(ctx, h.Store, "t1", "n0", fmt.Sprintf("n-%d", i), fmt.Sprintf("t-%d", i), now, false)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					winners++
				} else if !errors.Is(err, session.ErrNonceMismatch) {
					others = append(others, err)
				}
			}(i)
		}
		wg.Wait()
		if len(others) > 0 {
			t.Fatalf("unexpected errors: %v", others)
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
	})

	t.Run("RevokeByUser", func(t *testing.T) {
		h := newHarness(t)
		seed(t, h.SeedUser, "u1", "u2")
		ctx := context.Background()
		now := Base()
		for _, tok := range []*session.RefreshToken{
			newToken("a", "u1", "na", now),
			newToken("b", "u1", "nb", now),
			newToken("c", "u2", "nc", now),
		} {
			if err := h.Store.CreateToken(ctx, tok); err != nil {
				t.Fatalf("create %s: %v", tok.ID, err)
			}
		}
		if ok, err := h.Store.RevokeByUserToken(ctx, "u1", "na", now); err != nil || !ok {
			t.Fatalf("revoke by token: ok=%v err=%v", ok, err)
		}
		if ok, err := h.Store.RevokeByUserToken(ctx, "u1", "nc", now); err != nil || ok {
			t.Fatalf("foreign token revoked: ok=%v err=%v", ok, err)
		}
		if err := h.Store.RevokeAllForUser(ctx, "u1", now); err != nil {
			t.Fatalf("revoke all: %v", err)
		}
		active, err := h.Store.ListActiveTokens(ctx, "u1", now)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(active) != 0 {
			t.Fatalf("expected no active tokens, got %d", len(active))
		}
		other, err := h.Store.ListActiveTokens(ctx, "u2", now)
		if err != nil {
			t.Fatalf("list u2: %v", err)
		}
		if len(other) != 1 {
			t.Fatalf("other user's token affected: %d active", len(other))
		}
	})
}
