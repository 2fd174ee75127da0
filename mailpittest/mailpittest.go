// Package mailpittest helps test suites put mail into a Mailpit instance by
// submitting it to Mailpit's SMTP listener.
package mailpittest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jordan-wright/email"

	"github.com/shineum/mailpit-go/internal/config"
	"github.com/shineum/mailpit-go/message"
)

// Mail is a message to deliver.
type Mail struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Headers     map[string]string
	Attachments []message.Attachment
}

// Sender submits mail over SMTP.
type Sender struct {
	addr string
	auth sasl.Client
}

// Option configures a Sender.
type Option func(*Sender)

// WithPlainAuth authenticates with SASL PLAIN before sending.
func WithPlainAuth(username, password string) Option {
	return func(s *Sender) {
		s.auth = sasl.NewPlainClient("", username, password)
	}
}

// New returns a Sender for the SMTP listener at addr (host:port).
func New(addr string, opts ...Option) *Sender {
	s := &Sender{addr: addr}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromEnv returns a Sender for the listener named by MAILPIT_SMTP_DSN,
// smtp://localhost:1025 by default. Credentials in the DSN enable PLAIN
// authentication.
func NewFromEnv() (*Sender, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	addr, err := cfg.SMTPAddr()
	if err != nil {
		return nil, err
	}

	var opts []Option
	if user, pass, ok := cfg.SMTPCredentials(); ok {
		opts = append(opts, WithPlainAuth(user, pass))
	}
	return New(addr, opts...), nil
}

// Addr returns the SMTP address mail is submitted to.
func (s *Sender) Addr() string {
	return s.addr
}

// Send composes m and submits it. Recipients are the union of To, Cc and
// Bcc; Bcc never appears in the headers.
func (s *Sender) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	recipients = append(recipients, m.To...)
	recipients = append(recipients, m.Cc...)
	recipients = append(recipients, m.Bcc...)
	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	raw, err := Compose(m)
	if err != nil {
		return err
	}

	from := message.ContactFromString(m.From).Address
	if err := smtp.SendMail(s.addr, s.auth, from, recipients, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", s.addr, err)
	}

	slog.Debug("delivered test mail",
		"addr", s.addr,
		"subject", m.Subject,
		"recipients", len(recipients),
	)
	return nil
}

// Compose renders m as an RFC 5322 message.
func Compose(m Mail) ([]byte, error) {
	e := email.NewEmail()
	e.From = m.From
	e.To = m.To
	e.Cc = m.Cc
	e.Subject = m.Subject
	if m.Text != "" {
		e.Text = []byte(m.Text)
	}
	if m.HTML != "" {
		e.HTML = []byte(m.HTML)
	}
	for name, value := range m.Headers {
		e.Headers.Set(name, value)
	}

	for _, att := range m.Attachments {
		contentType := att.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(att.Content), att.Filename, contentType); err != nil {
			return nil, fmt.Errorf("failed to attach %q: %w", att.Filename, err)
		}
	}

	raw, err := e.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to compose mail: %w", err)
	}
	return raw, nil
}
