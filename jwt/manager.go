package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenType is the purpose a token was minted for.
type TokenType string

const (
	TypeAccess        TokenType = "access"
	TypeVerifyEmail   TokenType = "verify_email"
	TypeResetPassword TokenType = "reset_password"
)

var (
	// ErrInvalidToken wraps every signature, expiry and claim failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTokenType is returned when a valid token has the wrong purpose.
	ErrInvalidTokenType = errors.New("Invalid token type")
)

// Config holds signing keys and per-type lifetimes.
type Config struct {
	AccessTTL        time.Duration
	VerifyEmailTTL   time.Duration
	ResetPasswordTTL time.Duration
	SigningMethod    SigningMethod
	PrivateKey       []byte
	PublicKey        []byte
	Issuer           string
	Audience         string
	Leeway           time.Duration
	MaxFutureIAT     time.Duration
}

// Claims are the registered claims plus the token type. PasswordStamp is set
// on reset-password tokens only and records the owner's password state at
// issuance.
type Claims struct {
	Type          TokenType `json:"type"`
	PasswordStamp string    `json:"pwc,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies typed tokens. It is immutable after NewManager.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.VerifyEmailTTL <= 0 || cfg.ResetPasswordTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// GenerateAccessToken mints an access token whose jti is the session nonce.
func (m *Manager) GenerateAccessToken(userID, nonce string) (string, error) {
	return m.issue(Claims{Type: TypeAccess}, userID, nonce, m.config.AccessTTL)
}

// GenerateVerifyEmailToken mints a verify-email token with a fresh jti.
func (m *Manager) GenerateVerifyEmailToken(userID string) (string, error) {
	jti, err := internal.NewNonce()
	if err != nil {
		return "", err
	}
	return m.issue(Claims{Type: TypeVerifyEmail}, userID, jti, m.config.VerifyEmailTTL)
}

// GenerateResetPasswordToken mints a reset-password token with a fresh jti.
// stamp identifies the password the token may replace; a token whose stamp no
// longer matches the stored password is spent.
func (m *Manager) GenerateResetPasswordToken(userID, stamp string) (string, error) {
	if stamp == "" {
		return "", errors.New("empty password stamp")
	}
	jti, err := internal.NewNonce()
	if err != nil {
		return "", err
	}
	return m.issue(Claims{Type: TypeResetPassword, PasswordStamp: stamp}, userID, jti, m.config.ResetPasswordTTL)
}

// TTL returns the configured lifetime of a token type.
func (m *Manager) TTL(t TokenType) time.Duration {
	switch t {
	case TypeAccess:
		return m.config.AccessTTL
	case TypeVerifyEmail:
		return m.config.VerifyEmailTTL
	case TypeResetPassword:
		return m.config.ResetPasswordTTL
	default:
		return 0
	}
}

func (m *Manager) issue(claims Claims, subject, jti string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty token subject")
	}

	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signKey, err := m.signKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(m.method(), claims).SignedString(signKey)
}

// VerifyJwt checks signature, expiry and registered claims, then requires the
// token type to equal expected.
func (m *Manager) VerifyJwt(token string, expected TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: token iat too far in the future", ErrInvalidToken)
	}
	if claims.Type != expected {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		if len(m.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
