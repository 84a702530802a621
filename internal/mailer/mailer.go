// Package mailer sends best-effort email.
//
// Nothing in the request path waits for mail. Services enqueue messages on
// a Dispatcher after their transaction commits; worker goroutines deliver
// them and log failures. There is no retry.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
)

// Message is one plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	addr string
	// sender is the bare envelope address; from is the full header value.
	sender string
	from   string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer accepts From as either a bare address or
// "Name <address>". Only the address goes on the SMTP envelope.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid from address %q: %w", cfg.From, err)
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		sender: from.Address,
		from:   from.String(),
		auth:   auth,
		send:   smtp.SendMail,
	}, nil
}

// Send delivers msg. smtp.SendMail takes no context; ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mailer: message has no recipient")
	}
	if err := m.send(m.addr, m.auth, m.sender, []string{msg.To}, m.format(msg)); err != nil {
		return fmt.Errorf("mailer: sending to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) format(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer logs messages instead of sending them. It is used when no SMTP
// host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (not sent, no SMTP host configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
