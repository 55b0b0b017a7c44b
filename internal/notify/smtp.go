package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"airwatch/internal/config"
	"airwatch/internal/types"
)

// SMTPTimeout bounds the whole SMTP conversation.
const SMTPTimeout = 10 * time.Second

const defaultSMTPPort = 587

// SMTPSender sends mail through the SMTP server named in the contact
// settings, upgrading with STARTTLS when use_tls is set and authenticating
// with PLAIN when a username is present.
type SMTPSender struct {
	timeout   time.Duration
	tlsConfig func(host string) *tls.Config
	logger    *slog.Logger
}

// NewSMTPSender creates an SMTPSender. A zero timeout means SMTPTimeout.
func NewSMTPSender(timeout time.Duration, logger *slog.Logger) *SMTPSender {
	if timeout <= 0 {
		timeout = SMTPTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		timeout: timeout,
		tlsConfig: func(host string) *tls.Config {
			return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		},
		logger: logger,
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message, contact config.EmailSettings) error {
	host := contact.SMTPServer
	port := contact.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return transportFailure("failed to connect to SMTP server", err)
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return transportFailure("SMTP handshake failed", err)
	}
	defer c.Close()

	if contact.UseTLS {
		if err := c.StartTLS(s.tlsConfig(host)); err != nil {
			return transportFailure("STARTTLS failed", err)
		}
	}

	if contact.Username != "" {
		var auth smtp.Auth = &plainAuth{username: contact.Username, password: contact.Password.Unmask()}
		if contact.UseTLS {
			auth = smtp.PlainAuth("", contact.Username, contact.Password.Unmask(), host)
		}
		if err := c.Auth(auth); err != nil {
			return types.NewAppError(types.ErrCodeNotifyAuthFailure, "SMTP authentication failed", err).
				WithDetails(map[string]any{"username": RedactEmail(contact.Username)})
		}
	}

	if err := c.Mail(msg.From); err != nil {
		return transportFailure("SMTP MAIL FROM rejected", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return transportFailure("SMTP RCPT TO rejected", err).
				WithDetails(map[string]any{"recipient": RedactEmail(rcpt)})
		}
	}

	w, err := c.Data()
	if err != nil {
		return transportFailure("SMTP DATA rejected", err)
	}
	if _, err := w.Write(buildMIME(msg)); err != nil {
		w.Close()
		return transportFailure("failed to write SMTP message", err)
	}
	if err := w.Close(); err != nil {
		return transportFailure("SMTP server rejected message", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.DebugContext(ctx, "SMTP QUIT failed after delivery", "error", err)
	}
	return nil
}

// plainAuth is AUTH PLAIN without the encrypted-connection check of
// smtp.PlainAuth, for relays configured with use_tls off.
type plainAuth struct {
	username string
	password string
}

func (a *plainAuth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.username + "\x00" + a.password), nil
}

func (a *plainAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

func transportFailure(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeNotifyTransportFailure, msg, err)
}

// buildMIME renders a plain-text RFC 5322 message with CRLF line endings.
func buildMIME(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
