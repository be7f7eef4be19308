package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"teamtasks/backend/internal/config"

	"gopkg.in/gomail.v2"
)

type Message struct {
	To      []string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Dialer is the part of gomail.Dialer used for delivery.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer Dialer
	from   string
}

func NewSMTPMailer(dialer Dialer, from string) *SMTPMailer {
	return &SMTPMailer{dialer: dialer, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer only records outgoing mail. It is used when no SMTP host is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.InfoContext(ctx, "mail not sent, smtp disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

func New(cfg config.SMTPConfig, log *slog.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(log)
	}
	return NewSMTPMailer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From)
}
