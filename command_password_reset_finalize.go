package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	UID         string `json:"uid" example:"TlUwMDAwMQ" doc:"Encoded account id from the reset link"`
	Token       string `json:"token" doc:"Reset token from the reset link"`
	NewPassword string `json:"new_password" example:"some_secret_word" doc:"Password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	handlerBase
	tokens *ResetTokenGenerator
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *ResetTokenGenerator, opts ...HandlerOption) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		handlerBase: newHandlerBase("identity.password_reset", repo, opts),
		tokens:      tokens,
	}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel, err := h.guard(ctx, "password reset finalization")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowResetConfirm, err)
	return err
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := ValidatePassword(event.NewPassword); err != nil {
		return err
	}

	passwordHash, err := HashPassword(event.NewPassword)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	var holder CredentialHolder
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var (
			store AccountStore
			err   error
		)
		holder, store, err = resolveResetHolder(ctx, h.repo, tx, event.UID)
		if err != nil {
			return err
		}

		if !h.tokens.CheckToken(holder, event.Token) {
			return ErrLinkExpired
		}

		return store.SetPasswordHashTx(ctx, tx, holder.Ref().ID, passwordHash)
	})

	if err != nil {
		return asRichError(err, "failed to finalize password reset")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     subjectActor(holder.Ref()),
		Subject:   holder.Ref(),
	})

	return nil
}
