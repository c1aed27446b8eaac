// Package email renders and sends the transactional emails produced by the
// email queue.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

const sendTimeout = 30 * time.Second

type Config struct {
	Sender         string
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunBaseURL string
}

func (c Config) mailgunConfigured() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

type Sender interface {
	Send(ctx context.Context, msg domain.Email) error
}

// NewSender returns a Mailgun sender when configured and a LogSender
// otherwise.
func NewSender(cfg Config, logger *slog.Logger) Sender {
	if !cfg.mailgunConfigured() {
		logger.Warn("Mailgun not configured, emails will be logged only")
		return NewLogSender(logger)
	}
	return NewMailgunSender(cfg, logger)
}

type MailgunSender struct {
	from   string
	client *mailgun.MailgunImpl
	logger *slog.Logger
}

func NewMailgunSender(cfg Config, logger *slog.Logger) *MailgunSender {
	client := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	if cfg.MailgunBaseURL != "" {
		client.SetAPIBase(cfg.MailgunBaseURL)
	}
	return &MailgunSender{
		from:   cfg.Sender,
		client: client,
		logger: logger.With(slog.String("sender", "mailgun")),
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg domain.Email) error {
	message := s.client.NewMessage(s.from, msg.Subject, "", msg.To)
	message.SetHtml(msg.HTML)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, id, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	s.logger.Info("Email sent",
		slog.String("to", msg.To),
		slog.String("message_id", id),
	)
	return nil
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("sender", "log"))}
}

func (s *LogSender) Send(_ context.Context, msg domain.Email) error {
	s.logger.Info("Email not delivered, no mail transport configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_size", len(msg.HTML)),
	)
	return nil
}
