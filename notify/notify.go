package notify

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/nas-health/go-identity"
	"github.com/nas-health/go-identity/config"
)

// New builds the notifier selected by cfg.Mail.Transport.
func New(ctx context.Context, cfg *config.Config, logger identity.Logger) (identity.Notifier, error) {
	if cfg.Mail.Transport == config.NotifierLog {
		return identity.LogNotifier{Logger: logger}, nil
	}

	renderer, err := NewRenderer(map[string]any{
		"expires": cfg.Auth.ResetTokenTTL.String(),
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Mail.Transport {
	case config.NotifierSMTP:
		return NewSMTPNotifier(SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
		}, renderer, logger), nil
	case config.NotifierSES:
		return NewSESNotifier(ctx, cfg.Mail.SES.Region, cfg.Mail.From, renderer, logger)
	}

	return nil, goerrors.New("unknown mail transport: "+cfg.Mail.Transport, goerrors.CategoryValidation).
		WithTextCode("INVALID_CONFIG")
}
