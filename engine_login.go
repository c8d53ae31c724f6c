package sessionauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
)

// Login checks credentials and opens a session. An unknown email and a wrong
// password fail identically, and no session exists after a failure.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	const op = "login"
	email = user.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
				return nil, unauthorized(op, ErrLoginRateLimited)
			}
			// throttle outage does not block logins
			e.logger.Warn("login throttle unavailable", slog.Any("error", err))
		}
	}

	u, err := e.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, internalError(op, err)
	}

	hash := e.dummyHash
	if u != nil {
		hash = u.PasswordHash
	}
	ok, verr := e.passwordHash.Verify(password, hash)
	if verr != nil && u != nil {
		e.logger.Error("stored password hash unreadable", slog.String("user_id", u.ID), slog.Any("error", verr))
	}
	if u == nil || !ok {
		e.loginFailed(ctx, email, ip)
		return nil, unauthorized(op, ErrInvalidCredentials)
	}

	nonce, err := internal.NewNonce()
	if err != nil {
		return nil, internalError(op, err)
	}
	sess, err := e.sessions.CreateSession(ctx, u.ID, nonce)
	if err != nil {
		if errors.Is(err, session.ErrOwnerNotFound) {
			// user deleted between lookup and session insert
			e.loginFailed(ctx, email, ip)
			return nil, sessionError(op, err)
		}
		e.logger.Error("create session failed", slog.String("user_id", u.ID), slog.Any("error", err))
		return nil, internalError(op, err)
	}
	e.metricInc(MetricSessionCreated)

	pair, err := e.issueTokenPair(sess)
	if err != nil {
		_ = e.sessions.DeleteSessionByID(ctx, sess.ID)
		return nil, internalError(op, err)
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
			e.logger.Warn("login throttle reset failed", slog.Any("error", err))
		}
	}
	e.touchDevice(ctx, u.ID)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, u.ID, sess.ID, nil, nil)
	return pair, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip string) {
	e.metricInc(MetricLoginFailure)
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("login throttle increment failed", slog.Any("error", err))
		}
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email}
	})
}
