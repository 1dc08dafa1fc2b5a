package identity

import (
	"context"
	"net/url"
	"strings"
)

// NotificationKind names the message a Notifier should deliver.
type NotificationKind string

const (
	NotifyRegistrationVerify NotificationKind = "REGISTRATION_VERIFY"
	NotifyEmailChangeVerify  NotificationKind = "EMAIL_CHANGE_VERIFY"
	NotifyPasswordReset      NotificationKind = "PASSWORD_RESET"
)

// Payload keys carried by notifications.
const (
	PayloadToken  = "token"
	PayloadUID    = "uid"
	PayloadLink   = "link"
	PayloadAction = "action"
)

// Deep link actions understood by the app redirect page.
const (
	ActionVerifyEmail   = "verify-email"
	ActionEmailChange   = "email-change"
	ActionPasswordReset = "password-reset"
)

const appRedirectPath = "/accounts/app-redirect/"

// Notification is one outbound message.
type Notification struct {
	Recipient string
	Kind      NotificationKind
	Payload   map[string]string
}

// Notifier delivers notifications. Delivery is best-effort from the point
// of view of the flows.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// LogNotifier writes notifications to a logger instead of delivering them.
type LogNotifier struct {
	Logger Logger
}

// Send implements Notifier.
func (l LogNotifier) Send(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = defLogger{name: "identity.notifier"}
	}
	logger.Info("notification", "kind", n.Kind, "recipient", n.Recipient, "link", n.Payload[PayloadLink])
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return LogNotifier{}
	}
	return n
}

// LinkBuilder renders deep links into the app redirect page.
type LinkBuilder struct {
	BaseURL string
}

// VerifyEmailLink returns the registration verification link.
func (b LinkBuilder) VerifyEmailLink(token string) string {
	return b.build(url.Values{
		"token":  {token},
		"action": {ActionVerifyEmail},
	})
}

// EmailChangeLink returns the email change confirmation link.
func (b LinkBuilder) EmailChangeLink(token string) string {
	return b.build(url.Values{
		"token":  {token},
		"action": {ActionEmailChange},
	})
}

// PasswordResetLink returns the password reset link.
func (b LinkBuilder) PasswordResetLink(uid, token string) string {
	return b.build(url.Values{
		"uid":    {uid},
		"token":  {token},
		"action": {ActionPasswordReset},
	})
}

func (b LinkBuilder) build(q url.Values) string {
	return strings.TrimRight(b.BaseURL, "/") + appRedirectPath + "?" + q.Encode()
}

func registrationNotification(links LinkBuilder, email, token string) Notification {
	return Notification{
		Recipient: email,
		Kind:      NotifyRegistrationVerify,
		Payload: map[string]string{
			PayloadToken:  token,
			PayloadAction: ActionVerifyEmail,
			PayloadLink:   links.VerifyEmailLink(token),
		},
	}
}

func emailChangeNotification(links LinkBuilder, email, token string) Notification {
	return Notification{
		Recipient: email,
		Kind:      NotifyEmailChangeVerify,
		Payload: map[string]string{
			PayloadToken:  token,
			PayloadAction: ActionEmailChange,
			PayloadLink:   links.EmailChangeLink(token),
		},
	}
}

func passwordResetNotification(links LinkBuilder, email, uid, token string) Notification {
	return Notification{
		Recipient: email,
		Kind:      NotifyPasswordReset,
		Payload: map[string]string{
			PayloadUID:    uid,
			PayloadToken:  token,
			PayloadAction: ActionPasswordReset,
			PayloadLink:   links.PasswordResetLink(uid, token),
		},
	}
}
