package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestEmailChangeMessage struct {
	Account    OwnerRef `json:"account"`
	NewEmail   string   `json:"new_email" example:"pepe.rone@example.com" doc:"Address to switch to"`
	OnResponse func(resp *EmailChangeResponse)
}

func (e RequestEmailChangeMessage) Type() string { return "email_change.request" }

type EmailChangeResponse struct {
	Pending *PendingEmailChange
}

type EmailChangeRequestHandler struct {
	handlerBase
}

func NewEmailChangeRequestHandler(repo RepositoryManager, opts ...HandlerOption) *EmailChangeRequestHandler {
	return &EmailChangeRequestHandler{
		handlerBase: newHandlerBase("identity.email_change", repo, opts),
	}
}

func (h *EmailChangeRequestHandler) Execute(ctx context.Context, event RequestEmailChangeMessage) error {
	ctx, cancel, err := h.guard(ctx, "email change request")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowEmailChange, err)
	return err
}

func (h *EmailChangeRequestHandler) execute(ctx context.Context, event RequestEmailChangeMessage) error {
	newEmail, err := ValidateEmail(event.NewEmail)
	if err != nil {
		return err
	}

	store, err := h.repo.Accounts(event.Account.Kind)
	if err != nil {
		return err
	}

	pending := &PendingEmailChange{}
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		owner, err := store.FindTx(ctx, tx, event.Account.ID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}

		if event.Account.Kind == KindEndUser && NormalizeEmail(owner.GetEmail()) != newEmail {
			if _, err := h.repo.Users().DeleteStaleByEmailTx(ctx, tx, newEmail); err != nil {
				return err
			}
		}

		taken, err := store.EmailTakenTx(ctx, tx, newEmail, owner.Ref().ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailInUse
		}

		if err := h.repo.EmailChanges().DeleteByEmailTx(ctx, tx, newEmail); err != nil {
			return err
		}

		if err := h.repo.EmailChanges().DeletePendingForOwnerTx(ctx, tx, owner.Ref()); err != nil {
			return err
		}

		pending, err = h.repo.EmailChanges().CreateTx(ctx, tx, &PendingEmailChange{
			ID:        uuid.New(),
			OwnerKind: owner.Ref().Kind,
			OwnerID:   owner.Ref().ID,
			NewEmail:  newEmail,
			Token:     uuid.NewString(),
			CreatedAt: h.now(),
		})
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return ErrEmailInUse
		}
		return asRichError(err, "failed to request email change")
	}

	h.notify(ctx, emailChangeNotification(h.links, pending.NewEmail, pending.Token))

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailChangeRequested,
		Actor:     subjectActor(pending.Owner()),
		Subject:   pending.Owner(),
		Metadata: map[string]any{
			"pending_change_id": pending.ID.String(),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&EmailChangeResponse{Pending: pending})
	}

	return nil
}
