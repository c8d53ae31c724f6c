package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/session"
)

// RefreshTokens redeems a refresh token for a new pair. The token's nonce must
// be the session's live nonce; a stale one is treated as theft and, under the
// delete policy, ends the session for everyone holding it.
func (e *Engine) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "refresh_tokens"
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricRefreshLatency, time.Since(start))
		}
	}()

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureMismatch:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		if e.config.Session.MismatchPolicy != session.MismatchReject {
			e.metricInc(MetricSessionInvalidated)
		}
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", res.SessionID, res.Err, func() map[string]string {
			return map[string]string{
				"policy":   string(e.config.Session.MismatchPolicy),
				"strategy": e.sessions.Strategy(),
			}
		})
		return nil, sessionError(op, res.Err)
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshExpired)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", res.SessionID, res.Err, refreshReason("session_expired"))
		return nil, sessionError(op, res.Err)
	case flows.RefreshFailureDecode, flows.RefreshFailureSessionNotFound:
		e.metricInc(MetricRefreshFailure)
		reason := "decode_failed"
		if res.Failure == flows.RefreshFailureSessionNotFound {
			reason = "session_not_found"
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", res.SessionID, res.Err, refreshReason(reason))
		return nil, sessionError(op, res.Err)
	default:
		e.metricInc(MetricRefreshFailure)
		e.logger.Error("refresh failed",
			slog.String("session_id", res.SessionID),
			slog.Int("stage", int(res.Failure)),
			slog.Any("error", res.Err),
		)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, res.Err, refreshReason("internal"))
		return nil, internalError(op, res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
	return &TokenPair{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  e.now().Add(e.config.JWT.AccessTTL),
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.Session.ExpiresAt,
	}, nil
}

func refreshReason(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}

// Logout ends the session a refresh token belongs to. It never fails: bad
// tokens and store errors are logged and swallowed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) {
	res := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	e.metricInc(MetricLogout)
	if res.Err != nil && res.SessionID != "" {
		e.logger.Warn("logout delete failed", slog.String("session_id", res.SessionID), slog.Any("error", res.Err))
	}
	e.emitAudit(ctx, auditEventLogoutSession, res.Err == nil, "", res.SessionID, nil, nil)
}

// GetSessions lists the sessions of the refresh token's owner without rotating
// the token.
func (e *Engine) GetSessions(ctx context.Context, refreshToken string) ([]SessionInfo, error) {
	const op = "get_sessions"
	res := flows.RunListSessions(ctx, refreshToken, e.flows.Sessions)
	if res.Err != nil {
		if errors.Is(res.Err, session.ErrNonceMismatch) {
			e.logger.Warn("session listing with stale refresh token", slog.String("user_id", res.UserID))
		}
		return nil, sessionError(op, res.Err)
	}
	return res.Sessions, nil
}

// ListSessionsForUser lists the unexpired sessions of userID, for callers
// already authenticated by an access token.
func (e *Engine) ListSessionsForUser(ctx context.Context, userID string) ([]SessionInfo, error) {
	const op = "list_sessions"
	if userID == "" {
		return nil, badRequest(op, ErrInvalidInput)
	}
	infos, err := e.sessions.ListSessions(ctx, userID)
	if err != nil {
		return nil, internalError(op, err)
	}
	return infos, nil
}

// LogoutAll ends every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	const op = "logout_all"
	if userID == "" {
		return badRequest(op, ErrInvalidInput)
	}
	if err := e.sessions.DeleteAllSessions(ctx, userID); err != nil {
		return internalError(op, err)
	}
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return nil
}
