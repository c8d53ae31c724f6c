package sessionauth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/sessionauth/session"
)

func TestEmailVerificationFlow(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")

	if err := h.engine.SendVerificationEmail(ctx, u.ID); err != nil {
		t.Fatalf("send verification: %v", err)
	}
	msg, _ := h.outbox.Last()
	if msg.To != "alice@example.com" {
		t.Fatalf("mail sent to %q", msg.To)
	}
	if !strings.Contains(msg.Text, "https://app.example.com") {
		t.Fatalf("mail does not link the frontend: %q", msg.Text)
	}
	token := h.lastMailToken(t)

	if err := h.engine.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	got, err := h.db.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !got.Verified() {
		t.Fatal("user not marked verified")
	}

	if err := h.engine.VerifyEmail(ctx, token); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
	if err := h.engine.SendVerificationEmail(ctx, u.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected already verified, got %v", err)
	}
}

func TestSendVerificationEmailUnknownUser(t *testing.T) {
	h := newTestHarness(t, nil)
	err := h.engine.SendVerificationEmail(context.Background(), "missing")
	if KindOf(err) != KindNotFound || !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyEmailRejectsGarbage(t *testing.T) {
	h := newTestHarness(t, nil)
	if err := h.engine.VerifyEmail(context.Background(), "not-a-token"); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	pair := h.registerAndLogin(t, "alice@example.com")

	if err := h.engine.SendResetPasswordEmail(ctx, "ALICE@example.com"); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	token := h.lastMailToken(t)

	if err := h.engine.ResetPassword(ctx, token, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected password reuse, got %v", err)
	}
	if err := h.engine.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected policy failure, got %v", err)
	}

	const newPassword = "brand-new-password-456"
	if err := h.engine.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := h.engine.RefreshTokens(ctx, pair.RefreshToken); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("reset must revoke sessions, got %v", err)
	}

	err := h.engine.ResetPassword(ctx, token, "yet-another-password-789")
	if !errors.Is(err, ErrResetTokenUsed) || KindOf(err) != KindUnauthorized {
		t.Fatalf("expected used token, got %v", err)
	}

	if _, err := h.engine.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := h.engine.Login(ctx, "alice@example.com", newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPasswordResetBackToBack(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	h.registerAndLogin(t, "alice@example.com")

	// the clock never moves: both resets land in the same instant
	passwords := []string{"first-new-password-1", "second-new-password-2"}
	var spent []string
	for _, pw := range passwords {
		if err := h.engine.SendResetPasswordEmail(ctx, "alice@example.com"); err != nil {
			t.Fatalf("send reset: %v", err)
		}
		token := h.lastMailToken(t)
		if err := h.engine.ResetPassword(ctx, token, pw); err != nil {
			t.Fatalf("reset to %q: %v", pw, err)
		}
		spent = append(spent, token)
	}

	for i, token := range spent {
		if err := h.engine.ResetPassword(ctx, token, "third-new-password-3"); !errors.Is(err, ErrResetTokenUsed) {
			t.Fatalf("token %d replayed: %v", i, err)
		}
	}
	if _, err := h.engine.Login(ctx, "alice@example.com", passwords[1]); err != nil {
		t.Fatalf("login with latest password: %v", err)
	}
}

func TestPasswordResetKeepsSessionsWhenConfigured(t *testing.T) {
	h := newTestHarness(t, &harnessOptions{mutate: func(c *Config) {
		c.PasswordReset.RevokeSessions = false
	}})
	ctx := context.Background()
	pair := h.registerAndLogin(t, "alice@example.com")

	if err := h.engine.SendResetPasswordEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	if err := h.engine.ResetPassword(ctx, h.lastMailToken(t), "brand-new-password-456"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := h.engine.RefreshTokens(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("session should survive: %v", err)
	}
}

func TestSendResetPasswordEmailUnknownEmail(t *testing.T) {
	h := newTestHarness(t, nil)
	err := h.engine.SendResetPasswordEmail(context.Background(), "nobody@example.com")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := h.outbox.Last(); ok {
		t.Fatal("no mail should be sent")
	}
}
