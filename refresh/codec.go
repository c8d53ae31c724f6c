package refresh

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/seal"
)

const separator = "."

var (
	// ErrInvalidSignature is returned when an opaque token's signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrMalformedToken is returned when an opaque token is structurally invalid.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidRefreshToken is the single outcome for any rejected refresh token.
	ErrInvalidRefreshToken = errors.New("Invalid refresh token")
)

// Claims is the decoded content of a refresh token.
type Claims struct {
	SessionID string
	NextNonce string
	// TokenNonce is the IV the token was encrypted under.
	TokenNonce string
}

// Codec packs and unpacks opaque tokens.
type Codec struct {
	sealer *seal.Sealer
}

// NewCodec returns a Codec using sealer for encryption and signing.
func NewCodec(sealer *seal.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// CreateOpaqueToken signs and encrypts payload under nonce.
func (c *Codec) CreateOpaqueToken(payload, nonce string) (string, error) {
	// base64 hides the separator and other symbols in the payload
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	signed := encoded + separator + c.sealer.Sign(encoded)

	sealed, err := c.sealer.Encrypt([]byte(signed), nonce)
	if err != nil {
		return "", err
	}
	return sealed.Content + separator + sealed.IV, nil
}

// ParseOpaqueToken decrypts token, verifies its signature and returns the payload.
func (c *Codec) ParseOpaqueToken(token string) (string, error) {
	content, iv, ok := splitPair(token)
	if !ok {
		return "", ErrMalformedToken
	}

	signed, err := c.sealer.Decrypt(seal.Sealed{IV: iv, Content: content})
	if err != nil {
		return "", err
	}

	encoded, signature, found := strings.Cut(string(signed), separator)
	if !found || strings.Contains(signature, separator) {
		return "", ErrInvalidSignature
	}
	if !c.sealer.VerifySignature(encoded, signature) {
		return "", ErrInvalidSignature
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedToken
	}
	return string(payload), nil
}

// GenerateRefreshToken issues a refresh token for sessionID encrypted under the
// session's current nonce. It returns the nonce the session rotates to when the
// token is redeemed.
func (c *Codec) GenerateRefreshToken(sessionID, nonce string) (string, string, error) {
	if sessionID == "" || strings.Contains(sessionID, separator) {
		return "", "", ErrMalformedToken
	}

	nextNonce, err := internal.NewNonce()
	if err != nil {
		return "", "", err
	}

	token, err := c.CreateOpaqueToken(sessionID+separator+nextNonce, nonce)
	if err != nil {
		return "", "", err
	}
	return token, nextNonce, nil
}

// VerifyRefreshToken decodes a refresh token. Any failure is reported as
// ErrInvalidRefreshToken.
func (c *Codec) VerifyRefreshToken(token string) (Claims, error) {
	_, tokenNonce, ok := splitPair(token)
	if !ok {
		return Claims{}, ErrInvalidRefreshToken
	}

	payload, err := c.ParseOpaqueToken(token)
	if err != nil {
		return Claims{}, ErrInvalidRefreshToken
	}

	sessionID, nextNonce, ok := splitPair(payload)
	if !ok {
		return Claims{}, ErrInvalidRefreshToken
	}

	return Claims{
		SessionID:  sessionID,
		NextNonce:  nextNonce,
		TokenNonce: tokenNonce,
	}, nil
}

// splitPair splits s into exactly two non-empty segments.
func splitPair(s string) (string, string, bool) {
	left, right, found := strings.Cut(s, separator)
	if !found || left == "" || right == "" || strings.Contains(right, separator) {
		return "", "", false
	}
	return left, right, true
}
