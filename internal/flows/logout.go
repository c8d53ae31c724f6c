package flows

import "context"

// LogoutSessions removes sessions by ID.
type LogoutSessions interface {
	DeleteSessionByID(ctx context.Context, id string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	VerifyRefreshToken RefreshVerifier
	Sessions           LogoutSessions
}

type LogoutResult struct {
	SessionID string
	Err       error
}

// RunLogout deletes the session a refresh token points at. Undecodable tokens
// are reported through Err and nothing is deleted.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.VerifyRefreshToken(refreshToken)
	if err != nil {
		return LogoutResult{Err: err}
	}
	return LogoutResult{
		SessionID: claims.SessionID,
		Err:       deps.Sessions.DeleteSessionByID(ctx, claims.SessionID),
	}
}
