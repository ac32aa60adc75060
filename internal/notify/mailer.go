package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/config"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Email struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

const sendAttempts = 3

// SMTPMailer sends plain-text mail, retrying transient failures.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

func NewSMTPMailer(cfg config.SMTP, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return fmt.Errorf("send %q: missing recipient", e.Subject)
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", e.To)
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/plain", e.Body)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := m.dialer.DialAndSend(msg); err != nil {
			m.log.Warn("send attempt failed",
				zap.String("to", e.To),
				zap.String("subject", e.Subject),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(sendAttempts),
	)
	if err != nil {
		return fmt.Errorf("smtp send failed after %d attempts: %w", attempt, err)
	}
	return nil
}

// LogMailer only logs. Used when no SMTP account is configured.
type LogMailer struct{ Log *zap.Logger }

func (m LogMailer) Send(_ context.Context, e Email) error {
	m.Log.Info("email (not sent, smtp disabled)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.Int("body_len", len(e.Body)))
	return nil
}
