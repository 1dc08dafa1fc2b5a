package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestPreRegistrationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Email address to register"`
	OnResponse func(resp *PreRegistrationResponse)
}

func (e RequestPreRegistrationMessage) Type() string { return "registration.pre_register" }

type PreRegistrationResponse struct {
	// Token is the REGISTRATION verification token sent to the address.
	Token           string
	PreRegistration *PreRegistration
	From            RegistrationState
	To              RegistrationState
	Reclaimed       int
}

type PreRegistrationHandler struct {
	handlerBase
}

func NewPreRegistrationHandler(repo RepositoryManager, opts ...HandlerOption) *PreRegistrationHandler {
	return &PreRegistrationHandler{
		handlerBase: newHandlerBase("identity.preregistration", repo, opts),
	}
}

func (h *PreRegistrationHandler) Execute(ctx context.Context, event RequestPreRegistrationMessage) error {
	ctx, cancel, err := h.guard(ctx, "pre-registration")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowPreRegistration, err)
	return err
}

func (h *PreRegistrationHandler) execute(ctx context.Context, event RequestPreRegistrationMessage) error {
	email, err := ValidateEmail(event.Email)
	if err != nil {
		return err
	}

	var resp *PreRegistrationResponse
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err = h.register(ctx, email)
		if err == nil || !IsUniqueViolation(err) {
			break
		}
		h.logger.Warn("pre-registration lost a uniqueness race", "attempt", attempt)
	}

	if err != nil {
		return asRichError(err, "failed to create pre-registration")
	}

	if resp.Reclaimed > 0 {
		h.logger.Info("reclaimed stale accounts", "count", resp.Reclaimed)
	}

	h.notify(ctx, registrationNotification(h.links, email, resp.Token))

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistrationTransition,
		Subject:   resp.PreRegistration.Ref(),
		FromState: resp.From,
		ToState:   resp.To,
		Metadata: map[string]any{
			"event":     EventRequestPreRegistration,
			"reclaimed": resp.Reclaimed,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *PreRegistrationHandler) register(ctx context.Context, email string) (*PreRegistrationResponse, error) {
	resp := &PreRegistrationResponse{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := h.now()

		user, err := optional(h.repo.Users().GetByEmailTx(ctx, tx, email))
		if err != nil {
			return err
		}

		pre, err := optional(h.repo.PreRegistrations().GetByEmailTx(ctx, tx, email))
		if err != nil {
			return err
		}

		resp.From = RegistrationStateOf(pre, user)
		if resp.To, err = NextRegistrationState(resp.From, EventRequestPreRegistration); err != nil {
			return err
		}

		if resp.Reclaimed, err = h.repo.Users().DeleteStaleByEmailTx(ctx, tx, email); err != nil {
			return err
		}

		if _, err := h.repo.PreRegistrations().DeleteByEmailTx(ctx, tx, email); err != nil {
			return err
		}

		created, err := h.repo.PreRegistrations().CreateTx(ctx, tx, &PreRegistration{
			ID:        uuid.New(),
			Email:     email,
			Token:     uuid.NewString(),
			CreatedAt: now,
			ExpiresAt: now.Add(RegistrationTTL),
		})
		if err != nil {
			return err
		}

		token, err := h.repo.Tokens().IssueTx(ctx, tx, created.Ref(), TokenRegistration, RegistrationTTL, now)
		if err != nil {
			return err
		}

		resp.PreRegistration = created
		resp.Token = token.Token
		return nil
	})

	return resp, err
}
