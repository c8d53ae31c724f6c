package seal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef-extra"

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte(testKey))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := newTestSealer(t)

	inputs := [][]byte{
		{},
		[]byte("plain"),
		[]byte("!@#$%^&*()_+{}|:\"<>?~`-=[]\\;',./"),
		{0x00, 0x01, 0x02, 0x1b, 0x7f, 0xff, '\n', '\t'},
		bytes.Repeat([]byte("αβγ."), 64),
	}

	for _, in := range inputs {
		sealed, err := s.Encrypt(in, "")
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if len(sealed.IV) != 16 {
			t.Fatalf("expected generated 16-byte iv, got %q", sealed.IV)
		}
		out, err := s.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Fatalf("round trip mismatch: %q != %q", in, out)
		}
	}
}

func TestEncryptUsesGivenIV(t *testing.T) {
	s := newTestSealer(t)
	iv := "AAAAAAAAAAAAAAAA"

	a, err := s.Encrypt([]byte("payload"), iv)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := s.Encrypt([]byte("payload"), iv)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a.IV != iv || a.Content != b.Content {
		t.Fatalf("expected deterministic output for fixed iv")
	}

	if _, err := s.Encrypt([]byte("payload"), "short"); err == nil {
		t.Fatal("expected error for short iv")
	}
}

func TestDecryptRejectsMalformed(t *testing.T) {
	s := newTestSealer(t)

	cases := []Sealed{
		{IV: "short", Content: "AAAA"},
		{IV: "AAAAAAAAAAAAAAAAA", Content: "AAAA"},
		{IV: "AAAAAAAAAAAAAAAA", Content: "not base64!"},
	}
	for _, c := range cases {
		if _, err := s.Decrypt(c); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption for %+v, got %v", c, err)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	s := newTestSealer(t)
	sig := s.Sign("payload")

	if !s.VerifySignature("payload", sig) {
		t.Fatal("expected valid signature")
	}
	if s.VerifySignature("payload2", sig) {
		t.Fatal("expected signature over other payload to fail")
	}

	sameLength := strings.Repeat("A", len(sig))
	if s.VerifySignature("payload", sameLength) {
		t.Fatal("expected forged equal-length signature to fail")
	}
	if s.VerifySignature("payload", sig[:len(sig)-1]) {
		t.Fatal("expected truncated signature to fail")
	}
	if s.VerifySignature("payload", "") {
		t.Fatal("expected empty signature to fail")
	}
}
