package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
)

// Notifier delivers token-bearing messages to an address. Send
// failures propagate to the caller of the triggering flow.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPNotifier sends mail over SMTPS using the configured transport.
type SMTPNotifier struct {
	client *gomail.Client
	from   string
	logger *zap.Logger
}

// NewSMTPNotifier builds the notifier from mail configuration.
func NewSMTPNotifier(cfg config.MailConfig, logger *zap.Logger) (*SMTPNotifier, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: cfg.From, logger: logger}, nil
}

// Send delivers a single HTML message.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Error("mail send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	n.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
