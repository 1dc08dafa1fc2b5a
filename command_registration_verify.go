package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConsumeRegistrationTokenMessage struct {
	Token      string `json:"token" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Registration verification token"`
	OnResponse func(resp *RegistrationVerifyResponse)
}

func (e ConsumeRegistrationTokenMessage) Type() string { return "registration.verify" }

type RegistrationVerifyResponse struct {
	User    *EndUser
	Session *SessionTokens
	// Replayed is true when the token had already been consumed.
	Replayed bool
	// Created is true when this call created the account.
	Created bool
}

type consumeOutcome int

const (
	consumeCreated consumeOutcome = iota
	consumeReused
	consumeReplayed
	consumeAlreadyActive
)

type RegistrationVerifyHandler struct {
	handlerBase
	issuer SessionIssuer
}

func NewRegistrationVerifyHandler(repo RepositoryManager, issuer SessionIssuer, opts ...HandlerOption) *RegistrationVerifyHandler {
	return &RegistrationVerifyHandler{
		handlerBase: newHandlerBase("identity.registration", repo, opts),
		issuer:      issuer,
	}
}

func (h *RegistrationVerifyHandler) Execute(ctx context.Context, event ConsumeRegistrationTokenMessage) error {
	ctx, cancel, err := h.guard(ctx, "registration verification")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowRegistration, err)
	return err
}

func (h *RegistrationVerifyHandler) execute(ctx context.Context, event ConsumeRegistrationTokenMessage) error {
	var (
		user    *EndUser
		pre     *PreRegistration
		outcome consumeOutcome
		err     error
	)

	for attempt := 1; attempt <= 2; attempt++ {
		user, pre, outcome, err = h.consume(ctx, event.Token)
		if err == nil || !IsUniqueViolation(err) {
			break
		}

		// A concurrent consumer created the account first.
		h.logger.Info("registration token consumed concurrently, replaying", "attempt", attempt)
		replayUser, replayPre, replayErr := h.loadReplay(ctx, event.Token)
		if replayErr != nil {
			err = replayErr
			break
		}
		if replayUser != nil {
			user, pre, outcome, err = replayUser, replayPre, consumeReplayed, nil
			break
		}
	}

	if err != nil {
		return asRichError(err, "failed to verify registration token")
	}

	if outcome == consumeAlreadyActive {
		h.logger.Info("registration token consumed for an active account", "user_id", user.ID)
		return ErrUserAlreadyActive
	}

	session, err := h.issuer.Issue(ctx, user, true)
	if err != nil {
		return asRichError(err, "failed to issue temporary session")
	}

	from := StatePreRegistered
	if outcome == consumeReplayed {
		from = RegistrationStateOf(pre, user)
	}
	to := RegistrationStateOf(pre, user)

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistrationTransition,
		Actor:     subjectActor(user.Ref()),
		Subject:   user.Ref(),
		FromState: from,
		ToState:   to,
		Metadata: map[string]any{
			"event":  EventConsumeRegistrationToken,
			"replay": outcome == consumeReplayed,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegistrationVerifyResponse{
			User:     user,
			Session:  session,
			Replayed: outcome == consumeReplayed,
			Created:  outcome == consumeCreated,
		})
	}

	return nil
}

func (h *RegistrationVerifyHandler) consume(ctx context.Context, token string) (*EndUser, *PreRegistration, consumeOutcome, error) {
	var (
		user    *EndUser
		pre     *PreRegistration
		outcome consumeOutcome
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pre, err = h.resolvePreRegistration(ctx, tx, token)
		if err != nil {
			return err
		}

		user, err = optional(h.repo.Users().GetByEmailTx(ctx, tx, pre.Email))
		if err != nil {
			return err
		}

		if pre.IsUsed {
			if user == nil {
				return ErrUserNotFound
			}
			outcome = consumeReplayed
			return nil
		}

		if _, err := NextRegistrationState(StatePreRegistered, EventConsumeRegistrationToken); err != nil {
			return err
		}

		if err := h.repo.PreRegistrations().MarkUsedTx(ctx, tx, pre.ID); err != nil {
			return err
		}
		pre.IsUsed = true

		switch {
		case user != nil && user.EmailVerified:
			outcome = consumeAlreadyActive
			return nil
		case user != nil:
			outcome = consumeReused
			return nil
		}

		user, err = h.repo.Users().CreateTx(ctx, tx, &EndUser{
			Email:        pre.Email,
			PasswordHash: RandomPasswordHash(),
			IsActive:     true,
			DateJoined:   h.now(),
		})
		if err != nil {
			return err
		}

		outcome = consumeCreated
		return nil
	})

	return user, pre, outcome, err
}

// resolvePreRegistration validates token and returns the pre-registration it
// belongs to. Expired tokens fail without touching any row.
func (h *RegistrationVerifyHandler) resolvePreRegistration(ctx context.Context, tx bun.IDB, token string) (*PreRegistration, error) {
	record, err := h.repo.Tokens().GetByTokenTx(ctx, tx, token, TokenRegistration)
	if err != nil {
		return nil, notFoundAs(err, ErrTokenNotFound)
	}

	if record.IsExpired(h.now()) {
		return nil, ErrTokenExpired
	}

	if record.OwnerKind != KindPreRegistration {
		return nil, ErrPreRegistrationNotFound
	}

	pre, err := h.repo.PreRegistrations().FindByIDTx(ctx, tx, record.OwnerID)
	if err != nil {
		return nil, notFoundAs(err, ErrPreRegistrationNotFound)
	}
	return pre, nil
}

func (h *RegistrationVerifyHandler) loadReplay(ctx context.Context, token string) (*EndUser, *PreRegistration, error) {
	var (
		user *EndUser
		pre  *PreRegistration
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pre, err = h.resolvePreRegistration(ctx, tx, token)
		if err != nil {
			return err
		}

		user, err = optional(h.repo.Users().GetByEmailTx(ctx, tx, pre.Email))
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, nil, richErr
		}
		return nil, nil, err
	}

	return user, pre, nil
}
