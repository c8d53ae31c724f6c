package sessionauth

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	h := newTestHarness(t, &harnessOptions{
		sink:   sink,
		mutate: func(c *Config) { c.Audit.Enabled = false },
	})
	h.register(t, "alice@example.com")

	_, _ = h.engine.Login(WithClientIP(context.Background(), "203.0.113.1"), "alice@example.com", "wrong-password")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func enabledAudit(buffer int, dropIfFull bool) func(*Config) {
	return func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = buffer
		c.Audit.DropIfFull = dropIfFull
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	sink := newCaptureSink(8)
	h := newTestHarness(t, &harnessOptions{sink: sink, mutate: enabledAudit(16, true)})
	h.register(t, "alice@example.com")
	drain(sink)

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "curl/8.4")
	_, _ = h.engine.Login(ctx, "alice@example.com", "super-secret-password")

	select {
	case ev := <-sink.events:
		if ev.EventType != auditEventLoginFailure {
			t.Fatalf("expected %s, got %q", auditEventLoginFailure, ev.EventType)
		}
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
		}
		if ev.UserAgent != "curl/8.4" {
			t.Fatalf("expected user agent, got %q", ev.UserAgent)
		}
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("expected invalid_credentials, got %q", ev.Error)
		}
		for _, v := range ev.Metadata {
			if v == "super-secret-password" {
				t.Fatal("sensitive password leaked in metadata")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditReuseDetectionEvent(t *testing.T) {
	sink := newCaptureSink(32)
	h := newTestHarness(t, &harnessOptions{sink: sink, mutate: enabledAudit(32, false)})
	pair := h.registerAndLogin(t, "alice@example.com")

	if _, err := h.engine.RefreshTokens(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	_, _ = h.engine.RefreshTokens(context.Background(), pair.RefreshToken)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.events:
			if ev.EventType != auditEventRefreshReuseDetected {
				continue
			}
			if ev.Error != string(auditErrRefreshReuse) || ev.Metadata["policy"] != "delete" {
				t.Fatalf("unexpected reuse event: %+v", ev)
			}
			return
		case <-timeout:
			t.Fatal("reuse event not emitted")
		}
	}
}

func drain(s *captureSink) {
	for {
		select {
		case <-s.events:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := newCaptureSink(32)
	h := newTestHarness(t, &harnessOptions{sink: sink, mutate: enabledAudit(32, false)})
	u := h.register(t, "alice@example.com")

	pair, err := h.engine.Login(context.Background(), "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	next, err := h.engine.RefreshTokens(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	secretNeedles := []string{
		testPassword,
		pair.RefreshToken,
		next.RefreshToken,
		pair.AccessToken,
		u.PasswordHash,
	}

	events := make([]AuditEvent, 0, 8)
	timeout := time.After(2 * time.Second)
collectLoop:
	for len(events) < 3 {
		select {
		case ev := <-sink.events:
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}

	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	for _, ev := range events {
		for _, needle := range secretNeedles {
			if needle == "" {
				continue
			}
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}
