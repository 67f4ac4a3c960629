// Package mailer delivers alert messages over SMTP.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/andresdiniz/wazeBR-sub001/internal/config"
)

// Mailer sends HTML mail through one SMTP account. Safe for concurrent use;
// each send dials its own session.
type Mailer struct {
	client *mail.Client
	from   string
}

// New builds a client from the SMTP config. Auth is skipped when no user is
// configured, which matches local relays and test harnesses.
func New(cfg config.SMTPConfig, timeout time.Duration) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client init: %w", err)
	}
	return &Mailer{client: client, from: cfg.From}, nil
}

// Send implements the alert transport.
func (m *Mailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from %q: %w", m.from, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("mail to %q: %w", recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %q: %w", recipient, err)
	}
	return nil
}
