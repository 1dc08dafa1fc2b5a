package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type VerifyEmailChangeMessage struct {
	Token      string `json:"token" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Email change token"`
	OnResponse func(resp *VerifyEmailChangeResponse)
}

func (e VerifyEmailChangeMessage) Type() string { return "email_change.verify" }

type VerifyEmailChangeResponse struct {
	Account  CredentialHolder
	OldEmail string
}

type EmailChangeVerifyHandler struct {
	handlerBase
}

func NewEmailChangeVerifyHandler(repo RepositoryManager, opts ...HandlerOption) *EmailChangeVerifyHandler {
	return &EmailChangeVerifyHandler{
		handlerBase: newHandlerBase("identity.email_change", repo, opts),
	}
}

func (h *EmailChangeVerifyHandler) Execute(ctx context.Context, event VerifyEmailChangeMessage) error {
	ctx, cancel, err := h.guard(ctx, "email change verification")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowEmailChangeVerify, err)
	return err
}

func (h *EmailChangeVerifyHandler) execute(ctx context.Context, event VerifyEmailChangeMessage) error {
	var (
		pending  *PendingEmailChange
		account  CredentialHolder
		oldEmail string
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pending, err = h.repo.EmailChanges().FindPendingByTokenTx(ctx, tx, event.Token)
		if err != nil {
			return notFoundAs(err, ErrInvalidToken)
		}

		if pending.IsExpired(h.now()) {
			return ErrTokenExpired
		}

		store, err := h.repo.Accounts(pending.OwnerKind)
		if err != nil {
			return err
		}

		current, err := store.FindTx(ctx, tx, pending.OwnerID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}
		oldEmail = current.GetEmail()

		if err := store.SetEmailTx(ctx, tx, pending.OwnerID, pending.NewEmail); err != nil {
			return err
		}

		if err := h.repo.EmailChanges().MarkVerifiedTx(ctx, tx, pending.ID); err != nil {
			return err
		}

		account, err = store.FindTx(ctx, tx, pending.OwnerID)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return ErrEmailInUse
		}
		return asRichError(err, "failed to verify email change")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor:     subjectActor(account.Ref()),
		Subject:   account.Ref(),
		Metadata: map[string]any{
			"pending_change_id": pending.ID.String(),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailChangeResponse{
			Account:  account,
			OldEmail: oldEmail,
		})
	}

	return nil
}
