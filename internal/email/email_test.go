package email

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/shared/logger"
)

func TestRenderer_Notification(t *testing.T) {
	r := NewRenderer()

	html, err := r.Notification(NotificationParams{
		Username: "alice",
		Header:   "New follower",
		Message:  "bob & carol started following you",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Hi alice,")
	assert.Contains(t, html, "<h2>New follower</h2>")
	assert.Contains(t, html, "bob &amp; carol", "values must be escaped")
	assert.Contains(t, html, DefaultImageURL)

	html, err = r.Notification(NotificationParams{Username: "alice", ImageURL: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.Contains(t, html, "https://cdn/x.png")
}

func TestRenderer_PasswordTemplates(t *testing.T) {
	r := NewRenderer()

	html, err := r.ForgotPassword("alice", "https://app/reset?token=t1")
	require.NoError(t, err)
	assert.Contains(t, html, `href="https://app/reset?token=t1"`)

	html, err = r.ResetPassword(ResetPasswordParams{Username: "alice", Email: "a@b.com", IPAddress: "10.0.0.1", Date: "2026-01-02"})
	require.NoError(t, err)
	assert.Contains(t, html, "a@b.com")
	assert.Contains(t, html, "10.0.0.1")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	_, err := NewRenderer().Render("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestNewSender(t *testing.T) {
	assert.IsType(t, &LogSender{}, NewSender(Config{}, logger.Nop()))
	assert.IsType(t, &LogSender{}, NewSender(Config{MailgunDomain: "mg.example.com"}, logger.Nop()))
	assert.IsType(t, &MailgunSender{}, NewSender(Config{
		Sender:        "no-reply@example.com",
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "key",
	}, logger.Nop()))
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.Send(context.Background(), domain.Email{To: "a@b.com", Subject: "Hello", HTML: "<p>hi</p>"}))
	assert.Contains(t, buf.String(), `"to":"a@b.com"`)
	assert.Contains(t, buf.String(), `"subject":"Hello"`)
}
