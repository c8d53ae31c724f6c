package sessionauth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/seal"
	"github.com/MrEthical07/sessionauth/session"
)

// Config is the complete engine configuration. It is copied into the
// [Builder] and treated as immutable afterwards.
type Config struct {
	AppName     string `yaml:"app_name"`
	AppKey      string `yaml:"app_key"`
	FrontendURL string `yaml:"frontend_url"`

	JWT           JWTConfig           `yaml:"jwt"`
	Session       SessionConfig       `yaml:"session"`
	Password      password.Config     `yaml:"password"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Devices       DevicesConfig       `yaml:"devices"`
	Audit         AuditConfig         `yaml:"audit"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls the signed tokens. With hs256 and no PrivateKey the
// AppKey doubles as the signing secret.
type JWTConfig struct {
	AccessTTL        time.Duration `yaml:"access_ttl"`
	VerifyEmailTTL   time.Duration `yaml:"verify_email_ttl"`
	ResetPasswordTTL time.Duration `yaml:"reset_password_ttl"`
	SigningMethod    string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	PrivateKey       []byte        `yaml:"-"`
	PublicKey        []byte        `yaml:"-"`
	Issuer           string        `yaml:"issuer"`
	Audience         string        `yaml:"audience"`
	Leeway           time.Duration `yaml:"leeway"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh sessions.
type SessionConfig struct {
	RefreshTTL     time.Duration          `yaml:"refresh_ttl"`
	MismatchPolicy session.MismatchPolicy `yaml:"mismatch_policy"`
	RedisPrefix    string                 `yaml:"redis_prefix"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

type PasswordResetConfig struct {
	// RevokeSessions logs the user out everywhere after a reset.
	RevokeSessions bool `yaml:"revoke_sessions"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles failed logins. It needs a Redis client.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Window           time.Duration `yaml:"window"`
	EnableIPThrottle bool          `yaml:"enable_ip_throttle"`
}

/*
====================================
DEVICES CONFIG
====================================
*/

type DevicesConfig struct {
	Enabled   bool `yaml:"enabled"`
	ListLimit int  `yaml:"list_limit"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field but AppKey set.
func DefaultConfig() Config {
	return Config{
		AppName:     "sessionauth",
		FrontendURL: "http://localhost:3000",
		JWT: JWTConfig{
			AccessTTL:        15 * time.Minute,
			VerifyEmailTTL:   24 * time.Hour,
			ResetPasswordTTL: 10 * time.Minute,
			SigningMethod:    "hs256",
			Leeway:           30 * time.Second,
		},
		Session: SessionConfig{
			RefreshTTL:     30 * 24 * time.Hour,
			MismatchPolicy: session.MismatchDelete,
			RedisPrefix:    "sa",
		},
		Password: password.Config{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   password.DefaultMinLength,
			MaxLength:   password.DefaultMaxLength,
		},
		PasswordReset: PasswordResetConfig{
			RevokeSessions: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Devices: DevicesConfig{
			Enabled:   true,
			ListLimit: 10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
CONFIG VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if len(c.AppKey) < seal.KeySize {
		return errors.New("AppKey must be at least 32 bytes")
	}
	if c.FrontendURL == "" {
		return errors.New("FrontendURL is required")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.VerifyEmailTTL <= 0 {
		return errors.New("JWT VerifyEmailTTL must be > 0")
	}
	if c.JWT.ResetPasswordTTL <= 0 {
		return errors.New("JWT ResetPasswordTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}
	if c.Session.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("Session RefreshTTL must be longer than JWT AccessTTL")
	}
	if _, err := session.ParseMismatchPolicy(string(c.Session.MismatchPolicy)); err != nil {
		return err
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	if c.Devices.ListLimit < 0 {
		return errors.New("Devices ListLimit must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

/*
====================================
ENVIRONMENT OVERRIDES
====================================
*/

// ApplyEnv overrides cfg from environment-style variables read through lookup
// (os.LookupEnv in production). Durations accept Go syntax ("15m") or integer
// seconds.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("APP_NAME"); ok {
		cfg.AppName = v
	}
	if v, ok := lookup("APP_KEY"); ok {
		cfg.AppKey = v
	}
	if v, ok := lookup("FRONTEND_URL"); ok {
		cfg.FrontendURL = strings.TrimRight(v, "/")
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"TOKEN_ACCESS_EXPIRATION", &cfg.JWT.AccessTTL},
		{"TOKEN_REFRESH_EXPIRATION", &cfg.Session.RefreshTTL},
		{"TOKEN_VERIFY_EMAIL_EXPIRATION", &cfg.JWT.VerifyEmailTTL},
		{"TOKEN_RESET_PASSWORD_EXPIRATION", &cfg.JWT.ResetPasswordTTL},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0, errors.New("must be > 0")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be > 0")
	}
	return d, nil
}
