package flows

import (
	"context"

	"github.com/MrEthical07/sessionauth/refresh"
	"github.com/MrEthical07/sessionauth/session"
)

// Deps groups flow dependency sets. The engine builds this once and delegates
// request methods to the matching flow.
type Deps struct {
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Sessions SessionsDeps
}

// RefreshVerifier decodes refresh tokens.
type RefreshVerifier func(token string) (refresh.Claims, error)

// SessionLookup reads a live session.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*session.Session, error)
}
