// Package mail delivers the account emails: address verification and password
// reset links.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mail: recipient is required")

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Composer renders the account emails.
type Composer struct {
	AppName     string
	FrontendURL string
}

func (c Composer) link(path, token string) string {
	return strings.TrimRight(c.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// VerifyEmail returns the address verification message for token.
func (c Composer) VerifyEmail(to, token string) Message {
	link := c.link("/verify-email", token)
	return Message{
		To:      to,
		Subject: "Verify your email",
		Text: fmt.Sprintf("Welcome to %s!\n"+
			"To verify your email, click on this link: %s\n"+
			"If you did not create an account, ignore this email.\n", c.AppName, link),
	}
}

// ResetPassword returns the password reset message for token.
func (c Composer) ResetPassword(to, token string) Message {
	link := c.link("/reset-password", token)
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text: fmt.Sprintf("To reset your password, click on this link: %s\n"+
			"If you did not request a password reset, ignore this email.\n", link),
	}
}

// LogMailer writes messages to a logger instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg at info level.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}

// Outbox keeps sent messages in memory.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
}

// Send appends msg.
func (o *Outbox) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	o.mu.Unlock()
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

// Last returns the most recent message.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return Message{}, false
	}
	return o.sent[len(o.sent)-1], true
}

// TokenFromLink extracts the token query parameter from the first link in text.
func TokenFromLink(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if !strings.Contains(field, "?token=") {
			continue
		}
		u, err := url.Parse(field)
		if err != nil {
			return "", false
		}
		tok := u.Query().Get("token")
		return tok, tok != ""
	}
	return "", false
}
