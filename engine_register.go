package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/user"
)

// Register creates an unverified account. The email is normalized before the
// uniqueness check; a taken email is a [KindBadRequest] error.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*User, error) {
	const op = "register"

	name := strings.TrimSpace(in.Name)
	email := user.NormalizeEmail(in.Email)
	if name == "" {
		return nil, badRequest(op, ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, badRequest(op, ErrInvalidInput)
	}
	if err := e.passwordHash.CheckPolicy(in.Password); err != nil {
		return nil, &Error{Kind: KindBadRequest, Op: op, Msg: err.Error(), Err: errors.Join(ErrPasswordPolicy, err)}
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailTaken, nil)
		return nil, badRequest(op, ErrEmailTaken)
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, internalError(op, err)
	}

	hash, err := e.passwordHash.Hash(in.Password)
	if err != nil {
		return nil, internalError(op, err)
	}

	now := e.now()
	id, err := internal.NewUserID(now)
	if err != nil {
		return nil, internalError(op, err)
	}
	u := &User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := e.users.CreateUser(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailTaken, nil)
			return nil, badRequest(op, ErrEmailTaken)
		}
		e.logger.Error("create user failed", slog.Any("error", err))
		return nil, internalError(op, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, u.ID, "", nil, nil)
	return u, nil
}
