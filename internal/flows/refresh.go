package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureSessionNotFound
	RefreshFailureMismatch
	RefreshFailureExpired
	RefreshFailureRotate
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	UserID       string
	Session      *session.Session
	AccessToken  string
	RefreshToken string
}

// RefreshSessions rotates the nonce of a session.
type RefreshSessions interface {
	RefreshSession(ctx context.Context, sessionID, nonce, nextNonce string) (*session.Session, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefreshToken   RefreshVerifier
	GenerateRefreshToken func(sessionID, nonce string) (string, string, error)
	IssueAccessToken     func(userID, nonce string) (string, error)
	Sessions             RefreshSessions
}

// RunRefresh redeems a refresh token: the nonce it was sealed under must be the
// session's live nonce, and the nonce it carries becomes the new one.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.VerifyRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureDecode,
			Err:     err,
		}
	}

	sess, err := deps.Sessions.RefreshSession(ctx, claims.SessionID, claims.TokenNonce, claims.NextNonce)
	if err != nil {
		failure := RefreshFailureRotate
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			failure = RefreshFailureSessionNotFound
		case errors.Is(err, session.ErrNonceMismatch):
			failure = RefreshFailureMismatch
		case errors.Is(err, session.ErrSessionExpired):
			failure = RefreshFailureExpired
		}
		return RefreshResult{
			Failure:   failure,
			Err:       err,
			SessionID: claims.SessionID,
		}
	}

	access, err := deps.IssueAccessToken(sess.UserID, sess.Nonce)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssueAccess,
			Err:       err,
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Session:   sess,
		}
	}

	token, _, err := deps.GenerateRefreshToken(sess.ID, sess.Nonce)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureEncode,
			Err:       err,
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Session:   sess,
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		Session:      sess,
		AccessToken:  access,
		RefreshToken: token,
	}
}
