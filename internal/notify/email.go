// Package notify is the outbound message boundary. The notifier is a thin
// stateless sender; retry policy lives with the caller.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"dining-concierge/internal/config"
	"dining-concierge/internal/model"
)

// SMTPNotifier sends plain-text email over SMTP.
type SMTPNotifier struct {
	cfg config.SMTPConfig
}

// NewSMTP creates an SMTP notifier.
func NewSMTP(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Send delivers one notification. Exactly one attempt; any failure is
// returned to the caller.
func (n *SMTPNotifier) Send(ctx context.Context, msg model.Notification) error {
	if msg.To == "" {
		return fmt.Errorf("notify: empty destination address")
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprintf("%d", n.cfg.Port))

	dialer := net.Dialer{Timeout: n.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("notify: starttls: %w", err)
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: auth: %w", err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("notify: mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("notify: rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: data: %w", err)
	}
	if _, err := w.Write(buildMessage(n.cfg.From, msg)); err != nil {
		w.Close()
		return fmt.Errorf("notify: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close body: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles the RFC 5322 message: headers, blank line, body.
func buildMessage(from string, msg model.Notification) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
