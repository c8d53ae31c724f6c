package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashRoundTrip(t *testing.T) {
	h := mustHasher(t, testConfig())

	encoded, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	other, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if other == encoded {
		t.Fatal("two hashes of the same password share a salt")
	}

	for plain, want := range map[string]bool{
		"correct horse battery":  true,
		"correct horse battery ": false,
		"wrong password":         false,
	} {
		ok, err := h.Verify(plain, encoded)
		if err != nil {
			t.Fatalf("Verify(%q): %v", plain, err)
		}
		if ok != want {
			t.Fatalf("Verify(%q) = %v, want %v", plain, ok, want)
		}
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h := mustHasher(t, testConfig())
	good, err := h.Hash("password-1234")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cases := map[string]string{
		"not phc":        "not-a-phc-hash",
		"bcrypt":         "$2a$10$abcdefghijklmnopqrstuv",
		"wrong version":  strings.Replace(good, "$v=19$", "$v=18$", 1),
		"argon2i":        strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"weak memory":    strings.Replace(good, "m=65536", "m=1024", 1),
		"trailing param": strings.Replace(good, "p=2$", "p=2,x=1$", 1),
		"bad salt":       strings.Join(append(strings.Split(good, "$")[:4], "!!", "AAAA"), "$"),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("password-1234", encoded); err == nil {
				t.Fatalf("expected error for %q", encoded)
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weakCfg := testConfig()
	weakCfg.Memory = 32 * 1024
	weakCfg.Time = 2
	weak := mustHasher(t, weakCfg)
	current := mustHasher(t, testConfig())

	oldHash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	newHash, err := current.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if up, err := current.NeedsUpgrade(oldHash); err != nil || !up {
		t.Fatalf("weak hash: up=%v err=%v", up, err)
	}
	if up, err := current.NeedsUpgrade(newHash); err != nil || up {
		t.Fatalf("current hash: up=%v err=%v", up, err)
	}
	// old hashes still verify under the new parameters
	if ok, err := current.Verify("upgrade-me-please", oldHash); err != nil || !ok {
		t.Fatalf("old hash no longer verifies: ok=%v err=%v", ok, err)
	}
}

func TestLengthPolicy(t *testing.T) {
	bounded := testConfig()
	bounded.MinLength = 12
	bounded.MaxLength = 64

	tests := []struct {
		name  string
		cfg   Config
		plain string
		want  error
	}{
		{"empty", testConfig(), "", ErrTooShort},
		{"default min minus one", testConfig(), "qwertyy", ErrTooShort},
		{"default min", testConfig(), "qwertyyy", nil},
		{"default max", testConfig(), strings.Repeat("e", DefaultMaxLength), nil},
		{"default max plus one", testConfig(), strings.Repeat("e", DefaultMaxLength+1), ErrTooLong},
		{"custom min", bounded, "eleven-char", ErrTooShort},
		{"custom min exact", bounded, "twelve-chars", nil},
		{"custom max exact", bounded, strings.Repeat("b", 64), nil},
		{"custom max plus one", bounded, strings.Repeat("b", 65), ErrTooLong},
		// bytes, not runes: four 3-byte runes pass an 8 byte minimum
		{"multibyte", testConfig(), "日本語日", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mustHasher(t, tt.cfg).CheckPolicy(tt.plain)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CheckPolicy = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHashAppliesPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLength = 64
	h := mustHasher(t, cfg)

	if _, err := h.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}

	encoded, err := h.Hash("valid-password-123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrTooLong) {
		t.Fatalf("Verify over max: %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	mutate := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"negative":    func(c *Config) { c.MinLength = -1 },
		"inverted":    func(c *Config) { c.MinLength = 20; c.MaxLength = 10 },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			fn(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
