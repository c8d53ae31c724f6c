package session

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence contract of the in-place rotation strategy.
// Rotate must be a single atomic compare-and-swap on the session's nonce.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Rotate(ctx context.Context, p RotateParams) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByUserNonce(ctx context.Context, userID, nonce string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) error
}

// ChainStore is the persistence contract of the chain rotation strategy.
//
// RotateToken revokes the row p.SessionID and inserts its replacement p.NewID in
// one transaction. A row that was already replaced and is presented again
// yields [ErrNonceMismatch]; with p.DeleteOnMismatch the whole family is revoked.
type ChainStore interface {
	CreateToken(ctx context.Context, tok *RefreshToken) error
	GetToken(ctx context.Context, id string) (*RefreshToken, error)
	RotateToken(ctx context.Context, p RotateParams) (*RefreshToken, error)
	ListActiveTokens(ctx context.Context, userID string, now time.Time) ([]RefreshToken, error)
	RevokeToken(ctx context.Context, id string, now time.Time) (bool, error)
	RevokeByUserToken(ctx context.Context, userID, token string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) error
}

// RotationStrategy is what [Manager] drives. Both strategies expose the same
// outcomes: the chain variant maps rows to [Session] values.
type RotationStrategy interface {
	Name() string
	Create(ctx context.Context, sess *Session) error
	Lookup(ctx context.Context, id string) (*Session, error)
	Rotate(ctx context.Context, p RotateParams) (*Session, error)
	List(ctx context.Context, userID string, now time.Time) ([]Session, error)
	Delete(ctx context.Context, userID, nonce string, now time.Time) (bool, error)
	DeleteByID(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string, now time.Time) error
}

const (
	// StrategyInPlace names [NewInPlaceRotation].
	StrategyInPlace = "in_place"
	// StrategyChain names [NewChainRotation].
	StrategyChain = "chain"
)

type inPlaceRotation struct {
	store Store
}

// NewInPlaceRotation mutates one record per session.
func NewInPlaceRotation(store Store) RotationStrategy {
	return &inPlaceRotation{store: store}
}

func (r *inPlaceRotation) Name() string { return StrategyInPlace }

func (r *inPlaceRotation) Create(ctx context.Context, sess *Session) error {
	return r.store.Create(ctx, sess)
}

func (r *inPlaceRotation) Lookup(ctx context.Context, id string) (*Session, error) {
	return r.store.Get(ctx, id)
}

func (r *inPlaceRotation) Rotate(ctx context.Context, p RotateParams) (*Session, error) {
	return r.store.Rotate(ctx, p)
}

func (r *inPlaceRotation) List(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	all, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, s := range all {
		if !s.Expired(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

func (r *inPlaceRotation) Delete(ctx context.Context, userID, nonce string, _ time.Time) (bool, error) {
	return r.store.DeleteByUserNonce(ctx, userID, nonce)
}

func (r *inPlaceRotation) DeleteByID(ctx context.Context, id string, _ time.Time) (bool, error) {
	return r.store.DeleteByID(ctx, id)
}

func (r *inPlaceRotation) DeleteAllForUser(ctx context.Context, userID string, _ time.Time) error {
	return r.store.DeleteAllForUser(ctx, userID)
}

type chainRotation struct {
	store ChainStore
}

// NewChainRotation keeps every issued token as a row linked to its successor.
func NewChainRotation(store ChainStore) RotationStrategy {
	return &chainRotation{store: store}
}

func (r *chainRotation) Name() string { return StrategyChain }

func (r *chainRotation) Create(ctx context.Context, sess *Session) error {
	return r.store.CreateToken(ctx, &RefreshToken{
		ID:        sess.ID,
		FamilyID:  sess.ID,
		UserID:    sess.UserID,
		Token:     sess.Nonce,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Lookup returns only the current link of a chain. Revoked or replaced rows
// read as absent.
func (r *chainRotation) Lookup(ctx context.Context, id string) (*Session, error) {
	tok, err := r.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if tok.RevokedAt != nil || tok.ReplacedBy != nil {
		return nil, ErrSessionNotFound
	}
	return tok.session(), nil
}

func (r *chainRotation) Rotate(ctx context.Context, p RotateParams) (*Session, error) {
	if p.NewID == "" {
		return nil, errors.New("chain rotation requires a new token id")
	}
	tok, err := r.store.RotateToken(ctx, p)
	if err != nil {
		return nil, err
	}
	return tok.session(), nil
}

func (r *chainRotation) List(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	toks, err := r.store.ListActiveTokens(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(toks))
	for i := range toks {
		out = append(out, *toks[i].session())
	}
	return out, nil
}

func (r *chainRotation) Delete(ctx context.Context, userID, nonce string, now time.Time) (bool, error) {
	return r.store.RevokeByUserToken(ctx, userID, nonce, now)
}

func (r *chainRotation) DeleteByID(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.store.RevokeToken(ctx, id, now)
}

func (r *chainRotation) DeleteAllForUser(ctx context.Context, userID string, now time.Time) error {
	return r.store.RevokeAllForUser(ctx, userID, now)
}
