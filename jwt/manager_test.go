package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:        15 * time.Minute,
		VerifyEmailTTL:   24 * time.Hour,
		ResetPasswordTTL: time.Hour,
		SigningMethod:    MethodHS256,
		PrivateKey:       testSecret,
		Issuer:           "sessionauth",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	base := Config{
		AccessTTL:        time.Minute,
		VerifyEmailTTL:   time.Minute,
		ResetPasswordTTL: time.Minute,
		SigningMethod:    MethodHS256,
		PrivateKey:       testSecret,
	}

	bad := base
	bad.AccessTTL = 0
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected zero ttl to fail")
	}

	bad = base
	bad.PrivateKey = []byte("short")
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected short hs256 key to fail")
	}

	bad = base
	bad.SigningMethod = "rs512"
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected unsupported method to fail")
	}

	bad = base
	bad.Leeway = time.Hour
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected large leeway to fail")
	}
}

func TestAccessTokenClaims(t *testing.T) {
	m := newHSManager(t)

	token, err := m.GenerateAccessToken("user-1", "nonce-nonce-1234")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}

	claims, err := m.VerifyJwt(token, TypeAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "user-1" || claims.ID != "nonce-nonce-1234" || claims.Type != TypeAccess {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("expected 15m lifetime, got %s", got)
	}
}

func TestVerifyJwtRejectsTypeConfusion(t *testing.T) {
	m := newHSManager(t)

	access, err := m.GenerateAccessToken("user-1", "nonce")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	verify, err := m.GenerateVerifyEmailToken("user-1")
	if err != nil {
		t.Fatalf("generate verify: %v", err)
	}
	reset, err := m.GenerateResetPasswordToken("user-1", "0")
	if err != nil {
		t.Fatalf("generate reset: %v", err)
	}

	cases := []struct {
		token    string
		expected TokenType
	}{
		{access, TypeVerifyEmail},
		{access, TypeResetPassword},
		{verify, TypeAccess},
		{verify, TypeResetPassword},
		{reset, TypeAccess},
		{reset, TypeVerifyEmail},
	}
	for _, c := range cases {
		_, err := m.VerifyJwt(c.token, c.expected)
		if !errors.Is(err, ErrInvalidTokenType) {
			t.Fatalf("expected ErrInvalidTokenType for %s, got %v", c.expected, err)
		}
		if err.Error() != "Invalid token type" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	}
}

func TestTypedTokensHaveFreshJTI(t *testing.T) {
	m := newHSManager(t)

	a, err := m.GenerateVerifyEmailToken("user-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := m.GenerateVerifyEmailToken("user-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ca, err := m.VerifyJwt(a, TypeVerifyEmail)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	cb, err := m.VerifyJwt(b, TypeVerifyEmail)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ca.ID == "" || ca.ID == cb.ID {
		t.Fatalf("expected distinct jti values, got %q and %q", ca.ID, cb.ID)
	}
	if got := ca.ExpiresAt.Sub(ca.IssuedAt.Time); got != 24*time.Hour {
		t.Fatalf("expected 24h lifetime, got %s", got)
	}
}

func TestVerifyJwtRejectsExpired(t *testing.T) {
	m := newHSManager(t)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateAccessToken("user-1", "nonce")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m.now = time.Now
	_, err = m.VerifyJwt(token, TypeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyJwtRejectsForeignKeyAndAlgorithm(t *testing.T) {
	m := newHSManager(t)

	other, err := NewManager(Config{
		AccessTTL:        time.Minute,
		VerifyEmailTTL:   time.Minute,
		ResetPasswordTTL: time.Minute,
		SigningMethod:    MethodHS256,
		PrivateKey:       []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:           "sessionauth",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	forged, err := other.GenerateAccessToken("user-1", "nonce")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.VerifyJwt(forged, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign key to fail, got %v", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "sessionauth",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	edToken, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.VerifyJwt(edToken, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm to fail, got %v", err)
	}
}

func TestVerifyJwtIssuerMismatch(t *testing.T) {
	m := newHSManager(t)
	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.VerifyJwt(token, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:        time.Minute,
		VerifyEmailTTL:   time.Minute,
		ResetPasswordTTL: time.Minute,
		SigningMethod:    MethodEd25519,
		PrivateKey:       priv,
		PublicKey:        pub,
		Audience:         "api",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.GenerateResetPasswordToken("user-9", "1700000000123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.VerifyJwt(token, TypeResetPassword)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-9" || claims.PasswordStamp != "1700000000123" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := m.GenerateResetPasswordToken("user-9", ""); err == nil {
		t.Fatal("expected error for empty stamp")
	}
}

func TestSplitAndJoinToken(t *testing.T) {
	m := newHSManager(t)
	token, err := m.GenerateAccessToken("user-1", "nonce")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	headerPayload, signature, err := SplitToken(token)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	joined, err := JoinToken(headerPayload, signature)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined != token {
		t.Fatal("join did not restore the token")
	}

	for _, bad := range []string{"", "a.b", "a.b.", ".b.c", "a.b.c.d"} {
		if _, _, err := SplitToken(bad); err == nil {
			t.Fatalf("expected split of %q to fail", bad)
		}
	}
}
