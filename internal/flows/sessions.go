package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

// SessionsLister lists the sessions of a user.
type SessionsLister interface {
	SessionLookup
	ListSessions(ctx context.Context, userID string) ([]session.Info, error)
}

// SessionsDeps captures session listing dependencies.
type SessionsDeps struct {
	VerifyRefreshToken RefreshVerifier
	Sessions           SessionsLister
	Now                func() time.Time
}

type SessionsResult struct {
	UserID   string
	Sessions []session.Info
	Err      error
}

// RunListSessions authenticates a refresh token without rotating it and lists
// every session of its owner. The token must carry the live nonce.
func RunListSessions(ctx context.Context, refreshToken string, deps SessionsDeps) SessionsResult {
	claims, err := deps.VerifyRefreshToken(refreshToken)
	if err != nil {
		return SessionsResult{Err: err}
	}

	sess, err := deps.Sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		return SessionsResult{Err: err}
	}
	if sess.Nonce != claims.TokenNonce {
		return SessionsResult{UserID: sess.UserID, Err: session.ErrNonceMismatch}
	}
	if deps.Now != nil && sess.Expired(deps.Now()) {
		return SessionsResult{UserID: sess.UserID, Err: session.ErrSessionExpired}
	}

	infos, err := deps.Sessions.ListSessions(ctx, sess.UserID)
	return SessionsResult{UserID: sess.UserID, Sessions: infos, Err: err}
}
