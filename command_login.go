package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Kind       AccountKind `json:"kind,omitempty"`
	Email      string      `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	Password   string      `json:"password" doc:"Password"`
	OnResponse func(resp *LoginResponse)
}

func (e LoginMessage) Type() string { return "auth.login" }

type LoginResponse struct {
	Account CredentialHolder
	Session *SessionTokens
}

type LogoutMessage struct {
	Account OwnerRef `json:"account"`
}

func (e LogoutMessage) Type() string { return "auth.logout" }

// SessionHandler authenticates credentials and reports session boundaries.
type SessionHandler struct {
	handlerBase
	issuer SessionIssuer
	audit  AuditNotifier
}

func NewSessionHandler(repo RepositoryManager, issuer SessionIssuer, audit AuditNotifier, opts ...HandlerOption) *SessionHandler {
	return &SessionHandler{
		handlerBase: newHandlerBase("identity.session", repo, opts),
		issuer:      issuer,
		audit:       normalizeAuditNotifier(audit),
	}
}

func (h *SessionHandler) Login(ctx context.Context, event LoginMessage) error {
	ctx, cancel, err := h.guard(ctx, "login")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.login(ctx, event)
	h.observe(flowLogin, err)
	return err
}

func (h *SessionHandler) login(ctx context.Context, event LoginMessage) error {
	kind := event.Kind
	if kind == "" {
		kind = KindEndUser
	}

	store, err := h.repo.Accounts(kind)
	if err != nil {
		return err
	}

	email := NormalizeEmail(event.Email)
	if email == "" || event.Password == "" {
		return ErrInvalidCredentials
	}

	var holder CredentialHolder
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		holder, err = store.FindByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return CompareDummyPassword(event.Password)
			}
			return err
		}

		if err := ComparePasswordAndHash(event.Password, holder.GetPasswordHash()); err != nil {
			return err
		}

		if !holder.IsActiveAccount() {
			return ErrAccountInactive
		}

		// Stamping the login also rotates the reset fingerprint.
		if err := store.TouchLastLoginTx(ctx, tx, holder.Ref().ID, h.now().Truncate(time.Second)); err != nil {
			return err
		}

		holder, err = store.FindTx(ctx, tx, holder.Ref().ID)
		return err
	})

	if err != nil {
		h.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata: map[string]any{
				"kind":   kind,
				"reason": ErrorKind(err),
			},
		})
		return asRichError(err, "failed to authenticate")
	}

	session, err := h.issuer.Issue(ctx, holder, !holder.IsEmailVerified())
	if err != nil {
		return asRichError(err, "failed to issue session")
	}

	if err := h.audit.SessionStarted(ctx, holder.Ref()); err != nil {
		h.logger.Warn("audit notifier error on session start", "error", err)
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     subjectActor(holder.Ref()),
		Subject:   holder.Ref(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&LoginResponse{
			Account: holder,
			Session: session,
		})
	}

	return nil
}

func (h *SessionHandler) Logout(ctx context.Context, event LogoutMessage) error {
	ctx, cancel, err := h.guard(ctx, "logout")
	defer cancel()
	if err != nil {
		return err
	}

	if event.Account.IsZero() {
		h.observe(flowLogout, ErrAccountNotFound)
		return ErrAccountNotFound
	}

	if err := h.audit.SessionEnded(ctx, event.Account); err != nil {
		h.logger.Warn("audit notifier error on session end", "error", err)
	}

	h.observe(flowLogout, nil)
	return nil
}
