package password

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg, fills length defaults and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// CheckPolicy returns ErrTooShort or ErrTooLong when plain is outside the
// configured byte bounds.
func (a *Argon2) CheckPolicy(plain string) error {
	return a.cfg.check(plain)
}

// Hash checks the policy and returns a PHC string for plain.
func (a *Argon2) Hash(plain string) (string, error) {
	if err := a.cfg.check(plain); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	out := phc{
		memory:      a.cfg.Memory,
		passes:      a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
	}
	out.key = derive(plain, out, a.cfg.KeyLength)
	return out.String(), nil
}

// Verify reports whether plain matches encoded. Parameters come from the hash,
// not from the current Config.
func (a *Argon2) Verify(plain, encoded string) (bool, error) {
	if len(plain) > a.cfg.MaxLength {
		return false, ErrTooLong
	}
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got := derive(plain, stored, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(got, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker costs or a
// different key length than the current Config.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	weaker := stored.memory < a.cfg.Memory ||
		stored.passes < a.cfg.Time ||
		stored.parallelism < a.cfg.Parallelism
	return weaker || uint32(len(stored.key)) != a.cfg.KeyLength, nil
}

func derive(plain string, p phc, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plain), p.salt, p.passes, p.memory, p.parallelism, keyLen)
}
