package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTemplates(t *testing.T) {
	tpl := Templates{}

	code := tpl.TwoFactorCode("alice@example.com", "Alice", "482913", 10*time.Minute)
	assert.Equal(t, "E-Learning App - Your verification code", code.Subject)
	assert.Contains(t, code.Text, "482913")
	assert.Contains(t, code.Text, "10 minutes")
	assert.Contains(t, code.Text, "Hello Alice")
	require.NoError(t, code.Validate())

	reset := Templates{AppName: "Academy"}.PasswordReset("bob@example.com", "", "tok123", time.Hour)
	assert.Equal(t, "Academy - Reset your password", reset.Subject)
	assert.Contains(t, reset.Text, "tok123")
	assert.Contains(t, reset.Text, "60 minutes")
	assert.Contains(t, reset.Text, "Hello there")

	welcome := tpl.Welcome("carol@example.com", "Carol")
	assert.Equal(t, "Welcome to E-Learning App", welcome.Subject)
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{Subject: "s", Text: "t"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@b.c", Text: "t"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@b.c", Subject: "s"}.Validate(), ErrInvalidMessage)
}

func TestLogSenderOmitsBody(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := NewLogSender(zap.New(core))

	msg := Templates{}.TwoFactorCode("alice@example.com", "Alice", "482913", 10*time.Minute)
	require.NoError(t, sender.Send(context.Background(), msg))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "alice@example.com", fields["to"])
	assert.Equal(t, msg.Subject, fields["subject"])
	for _, v := range fields {
		assert.NotContains(t, v, "482913")
	}
}

func TestLogSenderHonorsContext(t *testing.T) {
	sender := NewLogSender(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, Message{To: "a@b.c", Subject: "s", Text: "t"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSenderFunc(t *testing.T) {
	var got Message
	var s Sender = SenderFunc(func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Text: "t"}))
	assert.Equal(t, "a@b.c", got.To)
}

func TestNewSMTPSenderRequiresRelay(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587})
	require.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", s.cfg.From)
	assert.Equal(t, 10*time.Second, s.cfg.Timeout)
}

func TestSMTPSenderBuildsPlainTextMessage(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "u",
		Password: "p",
		From:     "noreply@academy.test",
	})
	require.NoError(t, err)

	m, err := s.build(Templates{}.TwoFactorCode("alice@example.com", "Alice", "482913", 10*time.Minute))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "noreply@academy.test")
	assert.Contains(t, raw, "alice@example.com")
	assert.Contains(t, raw, "Your verification code")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "482913")

	_, err = s.build(Message{To: "not an address", Subject: "s", Text: "t"})
	assert.Error(t, err)
}
