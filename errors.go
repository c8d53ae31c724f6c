package sessionauth

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var (
	// ErrUnauthorized matches every [KindUnauthorized] error under errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest matches every [KindBadRequest] error under errors.Is.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound matches every [KindNotFound] error under errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrInternal is the cause attached to unclassified failures.
	ErrInternal = errors.New("internal error")
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong password alike.
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUserNotFound       = errors.New("User not found")
	ErrAlreadyVerified    = errors.New("Email already verified")
	ErrPasswordReuse      = errors.New("New password must be different from the old password")
	ErrPasswordPolicy     = errors.New("Password does not meet the policy")
	ErrInvalidInput       = errors.New("Invalid input")
	ErrLoginRateLimited   = errors.New("Too many login attempts, try again later")
	// ErrResetTokenUsed is returned for reset tokens minted before the last password change.
	ErrResetTokenUsed = errors.New("Reset token already used")
	// ErrNotLoggedIn is the client message for a refresh token whose nonce is stale.
	ErrNotLoggedIn  = errors.New("It seems like you are not logged in")
	ErrInvalidToken = errors.New("Invalid token")
)

// Error is the typed failure returned by every [Engine] operation.
// Error() is safe to show to clients.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf returns the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, op string, cause error) *Error {
	e := &Error{Kind: kind, Op: op, Err: cause}
	if cause != nil {
		e.Msg = cause.Error()
	}
	return e
}

func unauthorized(op string, cause error) error { return newError(KindUnauthorized, op, cause) }
func badRequest(op string, cause error) error   { return newError(KindBadRequest, op, cause) }
func notFound(op string, cause error) error     { return newError(KindNotFound, op, cause) }

// internalError hides cause from the client message but keeps it for errors.Is.
func internalError(op string, cause error) error {
	return &Error{
		Kind: KindInternal,
		Op:   op,
		Msg:  ErrInternal.Error(),
		Err:  fmt.Errorf("%w: %w", ErrInternal, cause),
	}
}
