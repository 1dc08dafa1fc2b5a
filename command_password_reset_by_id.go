package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type ResetPasswordByIDMessage struct {
	AccountID   string `json:"user_id" example:"NU00001" doc:"Account display id"`
	UID         string `json:"uid,omitempty" doc:"Encoded account id from the reset link"`
	Token       string `json:"token,omitempty" doc:"Reset token from the reset link"`
	NewPassword string `json:"new_password" doc:"Password"`
}

func (e ResetPasswordByIDMessage) Type() string { return "password_reset.by_id" }

// ResetPasswordByIDHandler sets a password for an account id that a previous
// verify call returned. Unless trustVerified is set, the uid/token pair must
// be presented again and is re-checked against the account.
type ResetPasswordByIDHandler struct {
	handlerBase
	tokens        *ResetTokenGenerator
	trustVerified bool
}

func NewResetPasswordByIDHandler(repo RepositoryManager, tokens *ResetTokenGenerator, trustVerified bool, opts ...HandlerOption) *ResetPasswordByIDHandler {
	return &ResetPasswordByIDHandler{
		handlerBase:   newHandlerBase("identity.password_reset", repo, opts),
		tokens:        tokens,
		trustVerified: trustVerified,
	}
}

func (h *ResetPasswordByIDHandler) Execute(ctx context.Context, event ResetPasswordByIDMessage) error {
	ctx, cancel, err := h.guard(ctx, "password reset by account id")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowResetByID, err)
	return err
}

func (h *ResetPasswordByIDHandler) execute(ctx context.Context, event ResetPasswordByIDMessage) error {
	if err := ValidatePassword(event.NewPassword); err != nil {
		return err
	}

	kind, ok := KindForDisplayID(event.AccountID)
	if !ok {
		return ErrAccountNotFound
	}

	store, err := h.repo.Accounts(kind)
	if err != nil {
		return err
	}

	passwordHash, err := HashPassword(event.NewPassword)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	if h.trustVerified {
		h.logger.Warn("resetting password by account id without re-verifying the reset link", "account_id", event.AccountID)
	}

	var holder CredentialHolder
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		holder, err = store.FindTx(ctx, tx, event.AccountID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}

		if !h.trustVerified {
			linked, _, err := resolveResetHolder(ctx, h.repo, tx, event.UID)
			if err != nil {
				return err
			}
			if linked.Ref() != holder.Ref() {
				return ErrInvalidLink
			}
			if !h.tokens.CheckToken(holder, event.Token) {
				return ErrLinkExpired
			}
		}

		return store.SetPasswordHashTx(ctx, tx, holder.Ref().ID, passwordHash)
	})

	if err != nil {
		return asRichError(err, "failed to reset password")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     subjectActor(holder.Ref()),
		Subject:   holder.Ref(),
		Metadata: map[string]any{
			"by_account_id":  true,
			"trust_verified": h.trustVerified,
		},
	})

	return nil
}
