package password

import (
	"errors"
	"fmt"
)

const (
	// DefaultMinLength applies when Config.MinLength is zero.
	DefaultMinLength = 8
	// DefaultMaxLength applies when Config.MaxLength is zero.
	DefaultMaxLength = 1024
)

// Lower bounds accepted for Argon2id parameters, both in Config and in
// stored hashes.
const (
	floorMemoryKiB uint32 = 8 * 1024
	floorPasses    uint32 = 1
	floorLanes     uint8  = 1
	floorSaltBytes        = 16
	floorKeyBytes  uint32 = 16
)

var (
	ErrTooShort = errors.New("password too short")
	ErrTooLong  = errors.New("password too long")
)

// Config holds Argon2id cost parameters and the length policy. Lengths count
// bytes, not runes.
type Config struct {
	Memory      uint32 `yaml:"memory"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
	MinLength   int    `yaml:"min_length"`
	MaxLength   int    `yaml:"max_length"`
}

func (c Config) withDefaults() (Config, error) {
	checks := []struct {
		bad bool
		msg string
	}{
		{c.Memory < floorMemoryKiB, "password memory must be >= 8192 KB"},
		{c.Time < floorPasses, "password time must be >= 1"},
		{c.Parallelism < floorLanes, "password parallelism must be >= 1"},
		{c.SaltLength < floorSaltBytes, "password salt length must be >= 16"},
		{c.KeyLength < floorKeyBytes, "password key length must be >= 16"},
		{c.MinLength < 0 || c.MaxLength < 0, "password length bounds must be >= 0"},
	}
	for _, chk := range checks {
		if chk.bad {
			return c, errors.New(chk.msg)
		}
	}

	if c.MinLength == 0 {
		c.MinLength = DefaultMinLength
	}
	if c.MaxLength == 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.MaxLength < c.MinLength {
		return c, errors.New("password max length must be >= min length")
	}
	return c, nil
}

func (c Config) check(plain string) error {
	switch n := len(plain); {
	case n < c.MinLength:
		return fmt.Errorf("%w: must be at least %d bytes", ErrTooShort, c.MinLength)
	case n > c.MaxLength:
		return fmt.Errorf("%w: must be at most %d bytes", ErrTooLong, c.MaxLength)
	}
	return nil
}
