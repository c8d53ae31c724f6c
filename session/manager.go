package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
)

// MismatchPolicy decides what happens to a session when a stale nonce is presented.
type MismatchPolicy string

const (
	// MismatchDelete removes the session (chain: revokes the family). Both the
	// attacker and the legitimate holder must log in again.
	MismatchDelete MismatchPolicy = "delete"
	// MismatchReject only fails the request.
	MismatchReject MismatchPolicy = "reject"
)

// ParseMismatchPolicy accepts "delete", "reject" or "" (delete).
func ParseMismatchPolicy(v string) (MismatchPolicy, error) {
	switch MismatchPolicy(v) {
	case "", MismatchDelete:
		return MismatchDelete, nil
	case MismatchReject:
		return MismatchReject, nil
	default:
		return "", fmt.Errorf("unknown mismatch policy %q", v)
	}
}

// Config configures a [Manager].
type Config struct {
	RefreshTTL     time.Duration
	MismatchPolicy MismatchPolicy
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Manager runs the session lifecycle on top of a [RotationStrategy].
type Manager struct {
	strategy RotationStrategy
	ttl      time.Duration
	policy   MismatchPolicy
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager validates cfg and returns a Manager.
func NewManager(strategy RotationStrategy, cfg Config) (*Manager, error) {
	if strategy == nil {
		return nil, errors.New("session: rotation strategy is nil")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("session: refresh ttl must be > 0")
	}
	policy, err := ParseMismatchPolicy(string(cfg.MismatchPolicy))
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		strategy: strategy,
		ttl:      cfg.RefreshTTL,
		policy:   policy,
		now:      now,
		logger:   logger,
	}, nil
}

// Strategy returns the name of the configured rotation strategy.
func (m *Manager) Strategy() string { return m.strategy.Name() }

// CreateSession opens a session for userID whose first nonce is nonce.
func (m *Manager) CreateSession(ctx context.Context, userID, nonce string) (*Session, error) {
	if userID == "" || nonce == "" {
		return nil, errors.New("session: user id and nonce are required")
	}
	id, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.strategy.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// RefreshSession replaces nonce with nextNonce and extends the expiry.
//
// Outcomes, checked in order: [ErrSessionNotFound] when absent,
// [ErrNonceMismatch] when nonce is stale (the session is removed under
// [MismatchDelete]), [ErrSessionExpired] when past expiry. Of concurrent calls
// presenting the same nonce at most one succeeds.
func (m *Manager) RefreshSession(ctx context.Context, sessionID, nonce, nextNonce string) (*Session, error) {
	if sessionID == "" || nonce == "" || nextNonce == "" {
		return nil, ErrSessionNotFound
	}
	p := RotateParams{
		SessionID:        sessionID,
		Nonce:            nonce,
		NextNonce:        nextNonce,
		DeleteOnMismatch: m.policy == MismatchDelete,
	}
	if m.strategy.Name() == StrategyChain {
		id, err := internal.NewSessionID()
		if err != nil {
			return nil, err
		}
		p.NewID = id
	}
	now := m.now()
	p.Now = now
	p.ExpiresAt = now.Add(m.ttl)

	sess, err := m.strategy.Rotate(ctx, p)
	if errors.Is(err, ErrNonceMismatch) {
		m.logger.Warn("session refresh nonce mismatch",
			slog.String("session_id", sessionID),
			slog.String("policy", string(m.policy)),
			slog.String("strategy", m.strategy.Name()),
		)
	}
	return sess, err
}

// ListSessions returns the unexpired sessions of userID without nonces.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]Info, error) {
	sessions, err := m.strategy.List(ctx, userID, m.now())
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessions[i].Info())
	}
	return out, nil
}

// DeleteSession removes the session of userID holding nonce. Absence is not an error.
func (m *Manager) DeleteSession(ctx context.Context, userID, nonce string) error {
	_, err := m.strategy.Delete(ctx, userID, nonce, m.now())
	return err
}

// DeleteSessionByID removes one session. Absence is not an error.
func (m *Manager) DeleteSessionByID(ctx context.Context, id string) error {
	_, err := m.strategy.DeleteByID(ctx, id, m.now())
	return err
}

// DeleteAllSessions removes every session of userID.
func (m *Manager) DeleteAllSessions(ctx context.Context, userID string) error {
	return m.strategy.DeleteAllForUser(ctx, userID, m.now())
}

// Lookup returns the live session with the given ID. It does not check expiry.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return m.strategy.Lookup(ctx, id)
}
