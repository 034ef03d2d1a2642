// Package email sends plain-text notification email over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers mail through one SMTP relay.
type Sender struct {
	addr string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Option configures the sender.
type Option func(*Sender)

// WithSendFunc replaces the SMTP call, for tests.
func WithSendFunc(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) Option {
	return func(s *Sender) { s.send = send }
}

// New creates an SMTP sender. Username may be empty for relays that accept
// unauthenticated mail, such as a local test relay.
func New(host string, port int, username, password, from string, opts ...Option) *Sender {
	s := &Sender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		send: smtp.SendMail,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers one message. The context is accepted for interface symmetry;
// net/smtp has no context support, so cancellation only skips the attempt.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: LibriPal <%s>\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	if err := s.send(s.addr, s.auth, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
