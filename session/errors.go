package session

import "errors"

var (
	// ErrSessionNotFound is returned when the session does not exist or was revoked.
	ErrSessionNotFound = errors.New("logged out, please login again")
	// ErrSessionExpired is returned when rotating a session past its hard expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrNonceMismatch is returned when the presented nonce is not the current one.
	ErrNonceMismatch = errors.New("session nonce mismatch")
	// ErrOwnerNotFound is returned when creating a session for a user that does not exist.
	ErrOwnerNotFound = errors.New("session owner not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)
