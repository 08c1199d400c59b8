package infra

import (
	"fmt"
	"net/smtp"

	"github.com/Ambrosio03/TFG/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends transactional emails through the configured SMTP relay.
// Every send goes through a circuit breaker.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
	cb       *CircuitBreaker
}

func NewMailer(cfg *config.Config, cb *CircuitBreaker) *Mailer {
	if cb == nil {
		cb = NewCircuitBreaker(DefaultMailerCBConfig())
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		cb:       cb,
	}
}

// Enabled is false when no SMTP host is configured; jobs are then dropped.
func (m *Mailer) Enabled() bool { return m.host != "" }

// Send delivers a plain text email, attaching the file at attachPath if set.
func (m *Mailer) Send(to, subject, body, attachPath string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if attachPath != "" {
		if _, err := e.AttachFile(attachPath); err != nil {
			return fmt.Errorf("mailer: attach file: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return m.cb.Execute(func() error {
		return e.Send(m.addr, auth)
	})
}
