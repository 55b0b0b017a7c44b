// Package notify delivers alert emails when a cycle's classification is a
// Warning. Delivery is best-effort: one attempt per cycle, errors returned to
// the caller as notify_* AppErrors and never retried here.
package notify

import (
	"context"
	"log/slog"

	"airwatch/internal/config"
	"airwatch/internal/types"
)

// Email providers.
const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
)

// Alert is what a notification is about.
type Alert struct {
	Device         string
	Reading        types.Reading
	Classification types.Classification
}

// Notifier delivers an alert using the contact settings current for this
// cycle.
type Notifier interface {
	Notify(ctx context.Context, alert Alert, contact config.EmailSettings) error
}

// Message is a rendered plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender transmits a rendered message over one transport.
type Sender interface {
	Send(ctx context.Context, msg Message, contact config.EmailSettings) error
}

// EmailNotifier renders alerts and hands them to the configured Sender.
type EmailNotifier struct {
	senders map[string]Sender
	logger  *slog.Logger
}

// EmailNotifierConfig wires the available senders. SES may be nil when the
// process has no AWS credentials; selecting it then fails at send time.
type EmailNotifierConfig struct {
	SMTP   Sender
	SES    Sender
	Logger *slog.Logger
}

// NewEmailNotifier creates an EmailNotifier.
func NewEmailNotifier(cfg EmailNotifierConfig) *EmailNotifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	senders := make(map[string]Sender, 2)
	if cfg.SMTP != nil {
		senders[ProviderSMTP] = cfg.SMTP
	}
	if cfg.SES != nil {
		senders[ProviderSES] = cfg.SES
	}
	return &EmailNotifier{senders: senders, logger: cfg.Logger}
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, alert Alert, contact config.EmailSettings) error {
	logger := types.LoggerFromContext(ctx, n.logger)

	provider := contact.Provider
	if provider == "" {
		provider = ProviderSMTP
	}
	sender, ok := n.senders[provider]
	if !ok {
		return types.NewAppError(types.ErrCodeNotifyTransportFailure,
			"email provider "+provider+" is not available", nil)
	}

	recipients := contact.Recipients()
	if len(recipients) == 0 {
		return types.NewAppError(types.ErrCodeNotifyTransportFailure, "no email recipients configured", nil)
	}

	msg := Message{
		From:    contact.FromAddr,
		To:      recipients,
		Subject: Subject(alert.Device),
		Body:    Body(alert),
	}

	if err := sender.Send(ctx, msg, contact); err != nil {
		return err
	}

	redacted := make([]string, 0, len(recipients))
	for _, r := range recipients {
		redacted = append(redacted, RedactEmail(r))
	}
	logger.InfoContext(ctx, "alert email sent",
		"provider", provider,
		"recipients", redacted,
		"warnings", len(alert.Classification.Violations),
	)
	return nil
}
