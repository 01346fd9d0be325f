package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"ytpipeline/config"
)

const defaultSubject = "YouTube pipeline run report"

// Email sends the digest over SMTP, either SMTPS or plain-then-STARTTLS
// depending on configuration.
type Email struct {
	Config  config.EmailConfig
	Subject string
}

func (e *Email) Name() string { return "email" }

// Send delivers the digest as a plain-text mail to every recipient.
func (e *Email) Send(ctx context.Context, text string) error {
	cfg := e.Config
	if !cfg.Configured() {
		return nil
	}

	port := cfg.Port
	if port == 0 {
		if cfg.UseSSL {
			port = 465
		} else {
			port = 587
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: email: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(timeout))
	}
	if cfg.UseSSL {
		conn = tls.Client(conn, &tls.Config{ServerName: cfg.Host})
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("notify: email: handshake: %w", err)
	}
	defer client.Close()

	if !cfg.UseSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("notify: email: starttls: %w", err)
			}
		}
	}
	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: email: auth: %w", err)
		}
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("notify: email: mail from: %w", err)
	}
	for _, to := range cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("notify: email: rcpt %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: email: data: %w", err)
	}
	if _, err := w.Write(e.message(from, text)); err != nil {
		return fmt.Errorf("notify: email: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: email: close body: %w", err)
	}
	return client.Quit()
}

func (e *Email) message(from, text string) []byte {
	subject := e.Subject
	if subject == "" {
		subject = defaultSubject
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.Config.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	return []byte(b.String())
}
