package user

import (
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Alice@Example.COM ": "alice@example.com",
		"bob@example.com":      "bob@example.com",
		"":                     "",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVerified(t *testing.T) {
	u := &User{}
	if u.Verified() {
		t.Fatal("fresh user should not be verified")
	}
	now := time.Now()
	u.VerifiedAt = &now
	if !u.Verified() {
		t.Fatal("expected verified")
	}
}
