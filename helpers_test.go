package sessionauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/storage/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AppName = "sessionauth-test"
	cfg.AppKey = "0123456789abcdef0123456789abcdef-test-key"
	cfg.FrontendURL = "https://app.example.com"
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	return cfg
}

type harnessOptions struct {
	mutate func(*Config)
	sink   AuditSink
	// sessions: "redis" (default), "sql" or "chain"
	sessions string
	devices  bool
	// users wraps the sqlite user store
	users func(UserStore) UserStore
}

type testHarness struct {
	engine *Engine
	db     *sqlstore.DB
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	outbox *mail.Outbox
	clock  *testClock
}

func newTestHarness(t *testing.T, opts *harnessOptions) *testHarness {
	t.Helper()
	if opts == nil {
		opts = &harnessOptions{}
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, err := sqlstore.Open(context.Background(), sqlstore.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cfg := testConfig()
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}

	h := &testHarness{
		db:     db,
		mr:     mr,
		rdb:    rdb,
		outbox: &mail.Outbox{},
		clock:  newTestClock(),
	}

	var users UserStore = db
	if opts.users != nil {
		users = opts.users(db)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(h.outbox).
		WithClock(h.clock.Now)
	switch opts.sessions {
	case "sql":
		b.WithSessionStore(db)
	case "chain":
		b.WithChainStore(db)
	}
	if opts.devices {
		b.WithDeviceStore(db)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
		_ = db.Close()
	})
	return h
}

func (h *testHarness) register(t *testing.T, email string) *User {
	t.Helper()
	u, err := h.engine.Register(context.Background(), RegisterInput{
		Name:     "Test User",
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (h *testHarness) login(t *testing.T, email string) *TokenPair {
	t.Helper()
	pair, err := h.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return pair
}

func (h *testHarness) registerAndLogin(t *testing.T, email string) *TokenPair {
	t.Helper()
	h.register(t, email)
	return h.login(t, email)
}

func (h *testHarness) lastMailToken(t *testing.T) string {
	t.Helper()
	msg, ok := h.outbox.Last()
	if !ok {
		t.Fatal("no mail sent")
	}
	token, ok := mail.TokenFromLink(msg.Text)
	if !ok {
		t.Fatalf("no token link in mail: %q", msg.Text)
	}
	return token
}
