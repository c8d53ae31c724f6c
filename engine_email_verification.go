package sessionauth

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/sessionauth/jwt"
)

// SendVerificationEmail mails userID a verify-email link.
func (e *Engine) SendVerificationEmail(ctx context.Context, userID string) error {
	const op = "send_verification_email"
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return userError(op, err)
	}
	if u.Verified() {
		return badRequest(op, ErrAlreadyVerified)
	}

	token, err := e.jwtManager.GenerateVerifyEmailToken(u.ID)
	if err != nil {
		return internalError(op, err)
	}
	if err := e.mailer.Send(ctx, e.composer.VerifyEmail(u.Email, token)); err != nil {
		e.logger.Error("verification mail failed", slog.String("user_id", u.ID), slog.Any("error", err))
		return internalError(op, err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, u.ID, "", nil, nil)
	return nil
}

// VerifyEmail confirms the address a verify-email token was minted for.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	const op = "verify_email"
	claims, err := e.jwtManager.VerifyJwt(token, jwt.TypeVerifyEmail)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", err, nil)
		return unauthorized(op, err)
	}

	u, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return userError(op, err)
	}
	if u.Verified() {
		e.metricInc(MetricEmailVerificationFailure)
		return badRequest(op, ErrAlreadyVerified)
	}
	if err := e.users.MarkVerified(ctx, u.ID, e.now()); err != nil {
		return userError(op, err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, u.ID, "", nil, nil)
	return nil
}
