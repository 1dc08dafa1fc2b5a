package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type VerifyResetTokenMessage struct {
	UID        string `json:"uid" doc:"Encoded account id from the reset link"`
	Token      string `json:"token" doc:"Reset token from the reset link"`
	OnResponse func(resp *ResetTokenVerification)
}

func (e VerifyResetTokenMessage) Type() string { return "password_reset.verify" }

// ResetTokenVerification reports whether a reset link is still usable.
type ResetTokenVerification struct {
	Valid     bool   `json:"valid"`
	AccountID string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

type VerifyResetTokenHandler struct {
	handlerBase
	tokens *ResetTokenGenerator
}

func NewVerifyResetTokenHandler(repo RepositoryManager, tokens *ResetTokenGenerator, opts ...HandlerOption) *VerifyResetTokenHandler {
	return &VerifyResetTokenHandler{
		handlerBase: newHandlerBase("identity.password_reset", repo, opts),
		tokens:      tokens,
	}
}

func (h *VerifyResetTokenHandler) Execute(ctx context.Context, event VerifyResetTokenMessage) error {
	ctx, cancel, err := h.guard(ctx, "password reset token verification")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowResetVerify, err)
	return err
}

// execute checks the link without mutating anything.
func (h *VerifyResetTokenHandler) execute(ctx context.Context, event VerifyResetTokenMessage) error {
	var holder CredentialHolder
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		holder, _, err = resolveResetHolder(ctx, h.repo, tx, event.UID)
		return err
	})
	if err != nil {
		return asRichError(err, "failed to verify password reset token")
	}

	resp := &ResetTokenVerification{}
	if h.tokens.CheckToken(holder, event.Token) {
		resp.Valid = true
		resp.AccountID = holder.Ref().ID
		resp.Email = holder.GetEmail()
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
