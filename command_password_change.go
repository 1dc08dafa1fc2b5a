package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	Account     OwnerRef `json:"account"`
	OldPassword string   `json:"old_password"`
	NewPassword string   `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "password.change" }

type ChangePasswordHandler struct {
	handlerBase
}

func NewChangePasswordHandler(repo RepositoryManager, opts ...HandlerOption) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		handlerBase: newHandlerBase("identity.password_change", repo, opts),
	}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel, err := h.guard(ctx, "password change")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowPasswordChange, err)
	return err
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := ValidatePassword(event.NewPassword); err != nil {
		return err
	}

	store, err := h.repo.Accounts(event.Account.Kind)
	if err != nil {
		return err
	}

	passwordHash, err := HashPassword(event.NewPassword)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		holder, err := store.FindTx(ctx, tx, event.Account.ID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}

		if err := ComparePasswordAndHash(event.OldPassword, holder.GetPasswordHash()); err != nil {
			return err
		}

		return store.SetPasswordHashTx(ctx, tx, event.Account.ID, passwordHash)
	})

	if err != nil {
		return asRichError(err, "failed to change password")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     subjectActor(event.Account),
		Subject:   event.Account,
	})

	return nil
}
