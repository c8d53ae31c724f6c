package sessionauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/user"
)

// SendResetPasswordEmail mails a reset link to email.
func (e *Engine) SendResetPasswordEmail(ctx context.Context, email string) error {
	const op = "send_reset_password_email"
	u, err := e.users.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return userError(op, err)
	}

	token, err := e.jwtManager.GenerateResetPasswordToken(u.ID, passwordStamp(u))
	if err != nil {
		return internalError(op, err)
	}
	if err := e.mailer.Send(ctx, e.composer.ResetPassword(u.Email, token)); err != nil {
		e.logger.Error("reset mail failed", slog.String("user_id", u.ID), slog.Any("error", err))
		return internalError(op, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, u.ID, "", nil, nil)
	return nil
}

// ResetPassword sets a new password using a reset-password token. The token
// carries the password stamp it was minted under; once the password changes
// the stamp no longer matches, so every token is single use.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "reset_password"
	claims, err := e.jwtManager.VerifyJwt(token, jwt.TypeResetPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", err, nil)
		return unauthorized(op, err)
	}

	u, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return userError(op, err)
	}

	if claims.PasswordStamp != passwordStamp(u) {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.metricInc(MetricPasswordResetReplay)
		e.emitAudit(ctx, auditEventPasswordResetReplay, false, u.ID, "", ErrResetTokenUsed, nil)
		return unauthorized(op, ErrResetTokenUsed)
	}

	if err := e.passwordHash.CheckPolicy(newPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return &Error{Kind: KindBadRequest, Op: op, Msg: err.Error(), Err: errors.Join(ErrPasswordPolicy, err)}
	}
	same, err := e.passwordHash.Verify(newPassword, u.PasswordHash)
	if err != nil {
		return internalError(op, err)
	}
	if same {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, u.ID, "", ErrPasswordReuse, nil)
		return badRequest(op, ErrPasswordReuse)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return internalError(op, err)
	}
	if err := e.users.UpdatePassword(ctx, u.ID, hash, e.now()); err != nil {
		return userError(op, err)
	}

	if e.config.PasswordReset.RevokeSessions {
		if err := e.sessions.DeleteAllSessions(ctx, u.ID); err != nil {
			// the password already changed; stale sessions expire on their own
			e.logger.Error("session revocation after reset failed", slog.String("user_id", u.ID), slog.Any("error", err))
		} else {
			e.metricInc(MetricSessionInvalidated)
		}
	}
	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, u.Email, ""); err != nil {
			e.logger.Warn("login throttle reset failed", slog.Any("error", err))
		}
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, u.ID, "", nil, nil)
	return nil
}

// passwordStamp fingerprints the stored hash. Each hash has a fresh salt, so
// the stamp changes on every reset, even two within the same clock tick.
func passwordStamp(u *user.User) string {
	sum := sha256.Sum256([]byte(u.PasswordHash))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
