package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/device"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/refresh"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
)

// Engine runs registration, login and the refresh token lifecycle. It keeps no
// per-session state in memory and is safe for concurrent use. Build one with
// [New].
type Engine struct {
	config       Config
	users        UserStore
	sessions     *session.Manager
	codec        *refresh.Codec
	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	dummyHash    string
	limiter      *rate.Limiter
	devices      *device.Service
	mailer       Mailer
	composer     mail.Composer
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time
	flows        flows.Deps
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionStrategy names the rotation strategy in use ("in_place" or "chain").
func (e *Engine) SessionStrategy() string {
	return e.sessions.Strategy()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// AuthenticateAccess verifies an access token and returns who it belongs to.
// It does not consult the session store.
func (e *Engine) AuthenticateAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	const op = "authenticate_access"
	claims, err := e.jwtManager.VerifyJwt(accessToken, jwt.TypeAccess)
	if err != nil {
		e.metricInc(MetricAccessTokenRejected)
		return nil, unauthorized(op, err)
	}
	id := &AccessIdentity{
		UserID: claims.Subject,
		Nonce:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// issueTokenPair mints the access token (jti = nonce) and the refresh token
// sealed under nonce.
func (e *Engine) issueTokenPair(sess *session.Session) (*TokenPair, error) {
	access, err := e.jwtManager.GenerateAccessToken(sess.UserID, sess.Nonce)
	if err != nil {
		return nil, err
	}
	token, _, err := e.codec.GenerateRefreshToken(sess.ID, sess.Nonce)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  e.now().Add(e.jwtManager.TTL(jwt.TypeAccess)),
		RefreshToken:     token,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

// sessionError maps session outcomes to public errors.
func sessionError(op string, err error) error {
	switch {
	case errors.Is(err, refresh.ErrInvalidRefreshToken):
		return unauthorized(op, refresh.ErrInvalidRefreshToken)
	case errors.Is(err, session.ErrNonceMismatch):
		return &Error{
			Kind: KindUnauthorized,
			Op:   op,
			Msg:  ErrNotLoggedIn.Error(),
			Err:  errors.Join(ErrNotLoggedIn, err),
		}
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		return unauthorized(op, err)
	case errors.Is(err, session.ErrOwnerNotFound):
		return &Error{
			Kind: KindUnauthorized,
			Op:   op,
			Msg:  ErrInvalidCredentials.Error(),
			Err:  errors.Join(ErrInvalidCredentials, err),
		}
	default:
		return internalError(op, err)
	}
}

// userError maps user store outcomes to public errors.
func userError(op string, err error) error {
	switch {
	case errors.Is(err, user.ErrNotFound):
		return notFound(op, ErrUserNotFound)
	case errors.Is(err, user.ErrEmailTaken):
		return badRequest(op, ErrEmailTaken)
	default:
		return internalError(op, err)
	}
}
