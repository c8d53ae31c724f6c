package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/mail"
	"gopkg.in/yaml.v3"
)

// Config is the authd configuration file.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		// AuditFile, when set, receives audit events as JSON lines instead of
		// the structured logger.
		AuditFile string `yaml:"audit_file"`
	} `yaml:"log"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		// Users: postgres, sqlite or bolt.
		Users string `yaml:"users"`
		DSN   string `yaml:"dsn"`
		// Sessions: redis, sql, chain or bolt.
		Sessions string `yaml:"sessions"`
	} `yaml:"storage"`

	SMTP mail.SMTPConfig `yaml:"smtp"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Auth sessionauth.Config `yaml:"auth"`
}

func defaultConfig() *Config {
	cfg := &Config{Auth: sessionauth.DefaultConfig()}
	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Storage.Users = "sqlite"
	cfg.Storage.DSN = "authd.db"
	cfg.Storage.Sessions = "sql"
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// LoadConfig reads filename over the defaults, then applies environment
// overrides.
func LoadConfig(filename string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaultConfig()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := sessionauth.ApplyEnv(&cfg.Auth, lookup); err != nil {
		return nil, err
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Storage.DSN = v
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Users {
	case "postgres", "sqlite", "bolt":
	default:
		return fmt.Errorf("storage.users: unknown backend %q", c.Storage.Users)
	}
	switch c.Storage.Sessions {
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("storage.sessions redis requires redis.addr")
		}
	case "sql", "chain":
		if c.Storage.Users == "bolt" {
			return fmt.Errorf("storage.sessions %s requires a SQL user store", c.Storage.Sessions)
		}
	case "bolt":
		if c.Storage.Users != "bolt" {
			return errors.New("storage.sessions bolt requires storage.users bolt")
		}
	default:
		return fmt.Errorf("storage.sessions: unknown backend %q", c.Storage.Sessions)
	}
	if c.Storage.DSN == "" {
		return errors.New("storage.dsn is required")
	}
	return c.Auth.Validate()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
