package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessionauth/refresh"
	"github.com/MrEthical07/sessionauth/session"
)

type fakeSessions struct {
	sess      *session.Session
	rotateErr error
	deleted   []string
	lastArgs  [3]string
}

func (f *fakeSessions) RefreshSession(_ context.Context, id, nonce, next string) (*session.Session, error) {
	f.lastArgs = [3]string{id, nonce, next}
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	out := *f.sess
	out.Nonce = next
	return &out, nil
}

func (f *fakeSessions) DeleteSessionByID(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, id string) (*session.Session, error) {
	if f.sess == nil || f.sess.ID != id {
		return nil, session.ErrSessionNotFound
	}
	return f.sess, nil
}

func (f *fakeSessions) ListSessions(context.Context, string) ([]session.Info, error) {
	return []session.Info{f.sess.Info()}, nil
}

func verifier(claims refresh.Claims, err error) RefreshVerifier {
	return func(string) (refresh.Claims, error) { return claims, err }
}

func TestRunRefreshSuccess(t *testing.T) {
	store := &fakeSessions{sess: &session.Session{ID: "s1", UserID: "u1", Nonce: "n1"}}
	res := RunRefresh(context.Background(), "tok", RefreshDeps{
		VerifyRefreshToken: verifier(refresh.Claims{SessionID: "s1", TokenNonce: "n1", NextNonce: "n2"}, nil),
		GenerateRefreshToken: func(sid, nonce string) (string, string, error) {
			return "r:" + sid + ":" + nonce, "n3", nil
		},
		IssueAccessToken: func(uid, nonce string) (string, error) { return "a:" + uid + ":" + nonce, nil },
		Sessions:         store,
	})

	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %d: %v", res.Failure, res.Err)
	}
	if store.lastArgs != [3]string{"s1", "n1", "n2"} {
		t.Fatalf("rotate called with %v", store.lastArgs)
	}
	if res.AccessToken != "a:u1:n2" || res.RefreshToken != "r:s1:n2" {
		t.Fatalf("tokens not bound to next nonce: %q %q", res.AccessToken, res.RefreshToken)
	}
}

func TestRunRefreshClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want RefreshFailureKind
	}{
		{"missing", session.ErrSessionNotFound, RefreshFailureSessionNotFound},
		{"mismatch", session.ErrNonceMismatch, RefreshFailureMismatch},
		{"expired", session.ErrSessionExpired, RefreshFailureExpired},
		{"store", session.ErrStoreUnavailable, RefreshFailureRotate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunRefresh(context.Background(), "tok", RefreshDeps{
				VerifyRefreshToken: verifier(refresh.Claims{SessionID: "s1", TokenNonce: "n1", NextNonce: "n2"}, nil),
				Sessions:           &fakeSessions{rotateErr: tc.err},
			})
			if res.Failure != tc.want || !errors.Is(res.Err, tc.err) {
				t.Fatalf("got %d (%v), want %d", res.Failure, res.Err, tc.want)
			}
		})
	}
}

func TestRunRefreshDecodeFailure(t *testing.T) {
	res := RunRefresh(context.Background(), "junk", RefreshDeps{
		VerifyRefreshToken: verifier(refresh.Claims{}, refresh.ErrInvalidRefreshToken),
	})
	if res.Failure != RefreshFailureDecode {
		t.Fatalf("expected decode failure, got %d", res.Failure)
	}
}

func TestRunLogout(t *testing.T) {
	store := &fakeSessions{}
	res := RunLogout(context.Background(), "tok", LogoutDeps{
		VerifyRefreshToken: verifier(refresh.Claims{SessionID: "s1"}, nil),
		Sessions:           store,
	})
	if res.Err != nil || len(store.deleted) != 1 || store.deleted[0] != "s1" {
		t.Fatalf("logout did not delete: %+v %v", res, store.deleted)
	}

	res = RunLogout(context.Background(), "junk", LogoutDeps{
		VerifyRefreshToken: verifier(refresh.Claims{}, refresh.ErrInvalidRefreshToken),
		Sessions:           store,
	})
	if res.Err == nil || len(store.deleted) != 1 {
		t.Fatal("undecodable token must not delete anything")
	}
}

func TestRunListSessions(t *testing.T) {
	now := time.Now()
	store := &fakeSessions{sess: &session.Session{ID: "s1", UserID: "u1", Nonce: "n1", ExpiresAt: now.Add(time.Hour)}}
	deps := SessionsDeps{
		VerifyRefreshToken: verifier(refresh.Claims{SessionID: "s1", TokenNonce: "n1"}, nil),
		Sessions:           store,
		Now:                func() time.Time { return now },
	}

	res := RunListSessions(context.Background(), "tok", deps)
	if res.Err != nil || len(res.Sessions) != 1 || res.UserID != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}

	deps.VerifyRefreshToken = verifier(refresh.Claims{SessionID: "s1", TokenNonce: "stale"}, nil)
	if res := RunListSessions(context.Background(), "tok", deps); !errors.Is(res.Err, session.ErrNonceMismatch) {
		t.Fatalf("stale nonce accepted: %v", res.Err)
	}

	deps.VerifyRefreshToken = verifier(refresh.Claims{SessionID: "s1", TokenNonce: "n1"}, nil)
	deps.Now = func() time.Time { return now.Add(2 * time.Hour) }
	if res := RunListSessions(context.Background(), "tok", deps); !errors.Is(res.Err, session.ErrSessionExpired) {
		t.Fatalf("expired session accepted: %v", res.Err)
	}
}
