package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

// NewService returns the SMTP sender, or a sender that only logs when
// SMTP is disabled.
func NewService(cfg config.SMTPConfig) Service {
	if !cfg.Enabled {
		return &logSender{}
	}
	return NewSMTPSender(cfg)
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPSender struct {
	dialer  dialer
	from    string
	timeout time.Duration
	cb      *circuitbreaker.CircuitBreaker
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		timeout: cfg.Timeout,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// Send delivers msg. gomail has no context support, so the dial runs in
// its own goroutine and the caller stops waiting when ctx is done.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.cb.Execute(func() error {
		done := make(chan error, 1)
		go func() {
			done <- s.dialer.DialAndSend(m)
		}()

		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("failed to send email to %s: %w", msg.To, ctx.Err())
		}
	})
}

type logSender struct{}

func (l *logSender) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("smtp disabled, email not sent")
	return nil
}
