package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type RequestPasswordResetMessage struct {
	Kind       AccountKind `json:"kind,omitempty" doc:"Account variant, end_user when empty"`
	Email      string      `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	OnResponse func(resp *RequestPasswordResetResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "password_reset.request" }

// RequestPasswordResetResponse is only for in-process callers; it must not be
// echoed to clients since it reveals whether the email exists.
type RequestPasswordResetResponse struct {
	Notified bool
	UID      string
	Token    string
}

type PasswordResetRequestHandler struct {
	handlerBase
	tokens *ResetTokenGenerator
}

func NewPasswordResetRequestHandler(repo RepositoryManager, tokens *ResetTokenGenerator, opts ...HandlerOption) *PasswordResetRequestHandler {
	return &PasswordResetRequestHandler{
		handlerBase: newHandlerBase("identity.password_reset", repo, opts),
		tokens:      tokens,
	}
}

func (h *PasswordResetRequestHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	ctx, cancel, err := h.guard(ctx, "password reset request")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowResetRequest, err)
	return err
}

func (h *PasswordResetRequestHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	resp := &RequestPasswordResetResponse{}

	kind := event.Kind
	if kind == "" {
		kind = KindEndUser
	}

	store, err := h.repo.Accounts(kind)
	if err != nil {
		return err
	}

	email, err := ValidateEmail(event.Email)
	if err != nil {
		return err
	}

	var holder CredentialHolder
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		holder, err = optional(store.FindByEmailTx(ctx, tx, email))
		return err
	})
	if err != nil {
		return asRichError(err, "failed to look up account for password reset")
	}

	if holder == nil || !holder.IsActiveAccount() {
		h.logger.Info("password reset requested for unknown account")
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	resp.UID = EncodeUID(holder.Ref().ID)
	resp.Token = h.tokens.MakeToken(holder)
	resp.Notified = true

	h.notify(ctx, passwordResetNotification(h.links, holder.GetEmail(), resp.UID, resp.Token))

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Subject:   holder.Ref(),
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// resolveResetHolder decodes uid and loads the account it names.
func resolveResetHolder(ctx context.Context, repo RepositoryManager, tx bun.IDB, uid string) (CredentialHolder, AccountStore, error) {
	id, err := DecodeUID(uid)
	if err != nil || id == "" {
		return nil, nil, ErrInvalidLink
	}

	kind, ok := KindForDisplayID(id)
	if !ok {
		return nil, nil, ErrInvalidLink
	}

	store, err := repo.Accounts(kind)
	if err != nil {
		return nil, nil, ErrInvalidLink
	}

	holder, err := store.FindTx(ctx, tx, id)
	if err != nil {
		return nil, nil, notFoundAs(err, ErrInvalidLink)
	}

	return holder, store, nil
}
