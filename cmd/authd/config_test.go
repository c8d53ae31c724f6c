package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef-authd"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
storage:
  users: postgres
  dsn: postgres://auth@localhost/auth
  sessions: chain
smtp:
  host: smtp.example.com
  port: 587
  from_email: noreply@example.com
auth:
  app_name: Acme
  app_key: `+testKey+`
  jwt:
    access_ttl: 5m
`)

	cfg, err := LoadConfig(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Storage.Users)
	assert.Equal(t, "chain", cfg.Storage.Sessions)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "Acme", cfg.Auth.AppName)
	assert.Equal(t, 5*time.Minute, cfg.Auth.JWT.AccessTTL)
	// untouched sections keep their defaults
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.Session.RefreshTTL)
	assert.Equal(t, 5, cfg.Auth.RateLimit.MaxAttempts)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	cfg, err := LoadConfig("", env(map[string]string{
		"APP_KEY":                 testKey,
		"TOKEN_ACCESS_EXPIRATION": "120",
		"REDIS_URL":               "localhost:6379",
		"DATABASE_URL":            "file:auth.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, testKey, cfg.Auth.AppKey)
	assert.Equal(t, 2*time.Minute, cfg.Auth.JWT.AccessTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "file:auth.db", cfg.Storage.DSN)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "server: [", "error parsing config file"},
		{"unknown users backend", "storage:\n  users: mongo\nauth:\n  app_key: " + testKey, "storage.users"},
		{"redis sessions without addr", "storage:\n  sessions: redis\nauth:\n  app_key: " + testKey, "redis.addr"},
		{"bolt sessions with sql users", "storage:\n  sessions: bolt\nauth:\n  app_key: " + testKey, "storage.users bolt"},
		{"chain sessions with bolt users", "storage:\n  users: bolt\n  sessions: chain\nauth:\n  app_key: " + testKey, "SQL user store"},
		{"missing app key", "server:\n  addr: \":1\"", "AppKey"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body), env(nil))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want), err.Error())
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	require.Error(t, err)
}
