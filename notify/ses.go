package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	goerrors "github.com/goliatone/go-errors"
	identity "github.com/nas-health/go-identity"
)

// SESAPI is the subset of *ses.Client the SES notifier calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends rendered notifications with Amazon SES.
type SESNotifier struct {
	from     string
	client   SESAPI
	renderer *Renderer
	logger   identity.Logger
}

var _ identity.Notifier = (*SESNotifier)(nil)

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, from string, renderer *Renderer, logger identity.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load aws config")
	}
	return NewSESNotifierWithClient(from, ses.NewFromConfig(cfg), renderer, logger), nil
}

func NewSESNotifierWithClient(from string, client SESAPI, renderer *Renderer, logger identity.Logger) *SESNotifier {
	_, logger = identity.ResolveLogger("identity.notify.ses", nil, logger)
	return &SESNotifier{
		from:     from,
		client:   client,
		renderer: renderer,
		logger:   logger,
	}
}

func (n *SESNotifier) Send(ctx context.Context, note identity.Notification) error {
	msg, err := n.renderer.Render(note)
	if err != nil {
		return err
	}

	out, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(msg.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
		Source: aws.String(n.from),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithTextCode("NOTIFICATION_FAILED").
			WithMetadata(map[string]any{"kind": note.Kind})
	}

	n.logger.Info("notification sent", "transport", "ses", "kind", note.Kind, "message_id", aws.ToString(out.MessageId))
	return nil
}
