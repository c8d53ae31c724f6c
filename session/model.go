package session

import "time"

// Session is one login of one user. Nonce is the current rotation secret.
type Session struct {
	ID        string
	UserID    string
	Nonce     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its hard expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Info returns the listing projection of s.
func (s *Session) Info() Info {
	return Info{ID: s.ID, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
}

// Info is the externally visible view of a session. It never carries the nonce.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expires"`
}

// RefreshToken is one link of a rotation chain. FamilyID is the ID of the first
// token of the chain.
type RefreshToken struct {
	ID         string
	FamilyID   string
	UserID     string
	Token      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

// Valid reports whether the token is neither revoked, replaced nor expired.
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && t.ReplacedBy == nil && t.ExpiresAt.After(now)
}

func (t *RefreshToken) session() *Session {
	return &Session{
		ID:        t.ID,
		UserID:    t.UserID,
		Nonce:     t.Token,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

// RotateParams describes one rotation attempt.
type RotateParams struct {
	SessionID string
	// Nonce is the nonce the caller's token was issued under.
	Nonce     string
	NextNonce string
	Now       time.Time
	// ExpiresAt is the extended expiry applied on success.
	ExpiresAt time.Time
	// DeleteOnMismatch removes the session (chain: revokes the family) when
	// Nonce does not match.
	DeleteOnMismatch bool
	// NewID is the ID of the replacement row in the chain strategy.
	NewID string
}
