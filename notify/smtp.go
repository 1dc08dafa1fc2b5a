package notify

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/nas-health/go-identity"
	"gopkg.in/gomail.v2"
)

// Sender is the part of *gomail.Dialer the SMTP notifier uses.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier mails rendered notifications through an SMTP relay.
type SMTPNotifier struct {
	from     string
	sender   Sender
	renderer *Renderer
	logger   identity.Logger
}

var _ identity.Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg SMTPConfig, renderer *Renderer, logger identity.Logger) *SMTPNotifier {
	return NewSMTPNotifierWithSender(
		cfg.From,
		gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		renderer,
		logger,
	)
}

func NewSMTPNotifierWithSender(from string, sender Sender, renderer *Renderer, logger identity.Logger) *SMTPNotifier {
	_, logger = identity.ResolveLogger("identity.notify.smtp", nil, logger)
	return &SMTPNotifier{
		from:     from,
		sender:   sender,
		renderer: renderer,
		logger:   logger,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, note identity.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.renderer.Render(note)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.sender.DialAndSend(m); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithTextCode("NOTIFICATION_FAILED").
			WithMetadata(map[string]any{"kind": note.Kind})
	}

	n.logger.Info("notification sent", "transport", "smtp", "kind", note.Kind)
	return nil
}
