package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type ResendEmailChangeMessage struct {
	NewEmail   string `json:"new_email" example:"pepe.rone@example.com" doc:"Address with a pending change"`
	OnResponse func(resp *EmailChangeResponse)
}

func (e ResendEmailChangeMessage) Type() string { return "email_change.resend" }

type EmailChangeResendHandler struct {
	handlerBase
}

func NewEmailChangeResendHandler(repo RepositoryManager, opts ...HandlerOption) *EmailChangeResendHandler {
	return &EmailChangeResendHandler{
		handlerBase: newHandlerBase("identity.email_change", repo, opts),
	}
}

func (h *EmailChangeResendHandler) Execute(ctx context.Context, event ResendEmailChangeMessage) error {
	ctx, cancel, err := h.guard(ctx, "email change resend")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowEmailChangeResend, err)
	return err
}

// execute re-sends the confirmation for the pending change without rotating
// its token.
func (h *EmailChangeResendHandler) execute(ctx context.Context, event ResendEmailChangeMessage) error {
	newEmail, err := ValidateEmail(event.NewEmail)
	if err != nil {
		return err
	}

	var pending *PendingEmailChange
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pending, err = h.repo.EmailChanges().FindPendingByEmailTx(ctx, tx, newEmail)
		return notFoundAs(err, ErrPendingChangeNotFound)
	})
	if err != nil {
		return asRichError(err, "failed to load pending email change")
	}

	h.notify(ctx, emailChangeNotification(h.links, pending.NewEmail, pending.Token))

	if event.OnResponse != nil {
		event.OnResponse(&EmailChangeResponse{Pending: pending})
	}

	return nil
}
