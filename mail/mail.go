package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAppName prefixes every subject line.
const DefaultAppName = "E-Learning App"

// ErrInvalidMessage is returned for messages missing a recipient, subject or
// body.
var ErrInvalidMessage = errors.New("mail: missing required fields")

// Message is one outgoing plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Validate reports ErrInvalidMessage when a required field is empty.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" || m.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Sender delivers messages. Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Templates builds the messages sent by the auth flows.
type Templates struct {
	AppName string
}

func (t Templates) appName() string {
	if t.AppName == "" {
		return DefaultAppName
	}
	return t.AppName
}

// TwoFactorCode is the login verification message.
func (t Templates) TwoFactorCode(to, name, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s - Your verification code", t.appName()),
		Text: fmt.Sprintf(
			"Hello %s,\n\nYour verification code is: %s\n\nThe code expires in %d minutes. "+
				"If you did not try to sign in, change your password.\n",
			greetingName(name), code, int(ttl.Minutes()),
		),
	}
}

// Welcome is sent after registration.
func (t Templates) Welcome(to, name string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome to %s", t.appName()),
		Text: fmt.Sprintf(
			"Hello %s,\n\nThanks for signing up to %s. Your account is ready.\n",
			greetingName(name), t.appName(),
		),
	}
}

// PasswordReset carries the opaque reset token.
func (t Templates) PasswordReset(to, name, token string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s - Reset your password", t.appName()),
		Text: fmt.Sprintf(
			"Hello %s,\n\nWe received a request to reset your password. Use this token to proceed:\n\n%s\n\n"+
				"The token expires in %d minutes. If you did not request this, you can safely ignore this email.\n",
			greetingName(name), token, int(ttl.Minutes()),
		),
	}
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
