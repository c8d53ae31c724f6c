package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionauth/internal"
)

// KeySize is the minimum application key length in bytes.
const KeySize = 32

var (
	// ErrKeyTooShort is returned by NewSealer for keys shorter than KeySize.
	ErrKeyTooShort = errors.New("seal: key must be at least 32 bytes")
	// ErrDecryption is returned when a sealed value cannot be decrypted.
	ErrDecryption = errors.New("seal: decryption failed")
)

// Sealed is an encrypted value together with the IV it was encrypted under.
type Sealed struct {
	IV      string
	Content string
}

// Sealer encrypts, decrypts and signs with a fixed server key.
// It is safe for concurrent use.
type Sealer struct {
	block   cipher.Block
	signKey []byte
}

// NewSealer builds a Sealer from the application key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) < KeySize {
		return nil, ErrKeyTooShort
	}

	block, err := aes.NewCipher(key[:KeySize])
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	signKey := make([]byte, len(key))
	copy(signKey, key)

	return &Sealer{block: block, signKey: signKey}, nil
}

// Encrypt runs AES-256-CTR over plaintext. The iv string is used as raw IV bytes
// and must be exactly one block long; an empty iv gets a fresh nonce.
func (s *Sealer) Encrypt(plaintext []byte, iv string) (Sealed, error) {
	if iv == "" {
		nonce, err := internal.NewNonce()
		if err != nil {
			return Sealed{}, err
		}
		iv = nonce
	}
	if len(iv) != aes.BlockSize {
		return Sealed{}, fmt.Errorf("seal: iv must be %d bytes", aes.BlockSize)
	}

	out := make([]byte, len(plaintext))
	cipher.NewCTR(s.block, []byte(iv)).XORKeyStream(out, plaintext)

	return Sealed{
		IV:      iv,
		Content: base64.StdEncoding.EncodeToString(out),
	}, nil
}

// Decrypt reverses Encrypt. Any malformed input yields ErrDecryption.
func (s *Sealer) Decrypt(sealed Sealed) ([]byte, error) {
	if len(sealed.IV) != aes.BlockSize {
		return nil, ErrDecryption
	}

	raw, err := base64.StdEncoding.DecodeString(sealed.Content)
	if err != nil {
		return nil, ErrDecryption
	}

	out := make([]byte, len(raw))
	cipher.NewCTR(s.block, []byte(sealed.IV)).XORKeyStream(out, raw)
	return out, nil
}

// Sign returns the base64 HMAC-SHA256 digest of payload.
func (s *Sealer) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.signKey)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the digest and compares it in constant time.
func (s *Sealer) VerifySignature(payload, signature string) bool {
	expected := s.Sign(payload)
	if len(expected) != len(signature) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
