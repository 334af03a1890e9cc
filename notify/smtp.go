package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config holds the SMTP connection and sender settings.
type Config struct {
	// Addr is the server address in host:port form.
	Addr string
	// From is the envelope and header sender address.
	From string
	// Username enables PLAIN auth when non-empty.
	Username string
	Password string
	// Subject overrides the default message subject when non-empty.
	Subject string
}

const defaultSubject = "Your password recovery code"

// SMTP delivers recovery codes by email. Safe for concurrent use; each
// Deliver call opens its own connection.
type SMTP struct {
	config Config
}

// NewSMTP validates cfg and returns an SMTP notifier.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Addr == "" {
		return nil, errors.New("notify: smtp address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, fmt.Errorf("notify: invalid smtp address: %w", err)
	}
	if cfg.From == "" {
		return nil, errors.New("notify: sender address is required")
	}
	return &SMTP{config: cfg}, nil
}

// Deliver sends the recovery code to the given address. The context
// deadline bounds the whole SMTP exchange via the connection deadline.
func (s *SMTP) Deliver(ctx context.Context, to, code string) error {
	if to == "" {
		return errors.New("notify: empty recipient")
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("notify: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("notify: set deadline: %w", err)
		}
	}

	host, _, _ := net.SplitHostPort(s.config.Addr)
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("notify: starttls: %w", err)
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: auth: %w", err)
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("notify: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("notify: rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: data: %w", err)
	}
	if _, err := w.Write(s.buildMessage(to, code)); err != nil {
		return fmt.Errorf("notify: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close message: %w", err)
	}

	return client.Quit()
}

func (s *SMTP) buildMessage(to, code string) []byte {
	subject := s.config.Subject
	if subject == "" {
		subject = defaultSubject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your password recovery code is: %s\r\n", code)
	b.WriteString("\r\nIf you did not request this code, you can ignore this message.\r\n")
	return []byte(b.String())
}
