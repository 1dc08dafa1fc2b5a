package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceOption customizes NewService.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	handlerOpts []HandlerOption
	audit       AuditNotifier
	registerer  prometheus.Registerer
	clock       Clock
	logger      Logger
	provider    LoggerProvider
}

// WithHandlerOptions forwards options to every flow handler.
func WithHandlerOptions(opts ...HandlerOption) ServiceOption {
	return func(o *serviceOptions) {
		o.handlerOpts = append(o.handlerOpts, opts...)
	}
}

// WithAuditNotifier sets the receiver of session boundary events.
func WithAuditNotifier(audit AuditNotifier) ServiceOption {
	return func(o *serviceOptions) {
		o.audit = audit
	}
}

// WithMetrics registers flow outcome counters on reg.
func WithMetrics(reg prometheus.Registerer) ServiceOption {
	return func(o *serviceOptions) {
		o.registerer = reg
	}
}

// WithServiceClock sets the time source of handlers, sessions and reset tokens.
func WithServiceClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

// WithServiceLogger sets the fallback logger for the service.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithServiceLoggerProvider sets the provider used for per-flow loggers.
func WithServiceLoggerProvider(provider LoggerProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// Service is the entry point to every identity flow.
type Service struct {
	repo        RepositoryManager
	issuer      SessionIssuer
	resetTokens *ResetTokenGenerator
	logger      Logger

	preRegistration *PreRegistrationHandler
	verify          *RegistrationVerifyHandler
	profile         *CompleteProfileHandler
	emailChange     *EmailChangeRequestHandler
	emailResend     *EmailChangeResendHandler
	emailVerify     *EmailChangeVerifyHandler
	resetRequest    *PasswordResetRequestHandler
	resetFinalize   *FinalizePasswordResetHandler
	resetVerify     *VerifyResetTokenHandler
	resetByID       *ResetPasswordByIDHandler
	passwordChange  *ChangePasswordHandler
	sessions        *SessionHandler
	purge           *PurgeStaleHandler
	admins          *CreateAdminHandler
}

// NewService wires the flow handlers. A nil issuer defaults to a
// JWTSessionIssuer built from cfg.
func NewService(cfg Config, repo RepositoryManager, issuer SessionIssuer, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, goerrors.New("identity config is required", goerrors.CategoryInternal)
	}
	if repo == nil {
		return nil, goerrors.New("repository manager is required", goerrors.CategoryInternal)
	}
	if err := repo.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid repository manager")
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	clock := normalizeClock(o.clock)
	provider, logger := ResolveLogger("identity", o.provider, o.logger)

	metrics, err := newFlowMetrics(o.registerer)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register identity metrics")
	}

	if issuer == nil {
		issuer = NewJWTSessionIssuer(cfg,
			WithSessionClock(clock),
			WithSessionLogger(provider.GetLogger("identity.session")),
		)
	}

	handlerOpts := []HandlerOption{
		WithClock(clock),
		WithLinkBuilder(LinkBuilder{BaseURL: cfg.GetLinkBaseURL()}),
		withFlowMetrics(metrics),
	}
	if o.provider != nil {
		handlerOpts = append(handlerOpts, WithLoggerProvider(o.provider))
	}
	if o.logger != nil {
		handlerOpts = append(handlerOpts, WithLogger(o.logger))
	}
	handlerOpts = append(handlerOpts, o.handlerOpts...)

	resetTokens := NewResetTokenGenerator(cfg.GetSigningKey(), cfg.GetResetTokenTTL(), clock)

	return &Service{
		repo:        repo,
		issuer:      issuer,
		resetTokens: resetTokens,
		logger:      logger,

		preRegistration: NewPreRegistrationHandler(repo, handlerOpts...),
		verify:          NewRegistrationVerifyHandler(repo, issuer, handlerOpts...),
		profile:         NewCompleteProfileHandler(repo, issuer, handlerOpts...),
		emailChange:     NewEmailChangeRequestHandler(repo, handlerOpts...),
		emailResend:     NewEmailChangeResendHandler(repo, handlerOpts...),
		emailVerify:     NewEmailChangeVerifyHandler(repo, handlerOpts...),
		resetRequest:    NewPasswordResetRequestHandler(repo, resetTokens, handlerOpts...),
		resetFinalize:   NewFinalizePasswordResetHandler(repo, resetTokens, handlerOpts...),
		resetVerify:     NewVerifyResetTokenHandler(repo, resetTokens, handlerOpts...),
		resetByID:       NewResetPasswordByIDHandler(repo, resetTokens, cfg.GetTrustVerifiedResetByID(), handlerOpts...),
		passwordChange:  NewChangePasswordHandler(repo, handlerOpts...),
		sessions:        NewSessionHandler(repo, issuer, o.audit, handlerOpts...),
		purge:           NewPurgeStaleHandler(repo, handlerOpts...),
		admins:          NewCreateAdminHandler(repo, handlerOpts...),
	}, nil
}

func (s *Service) Repository() RepositoryManager { return s.repo }

func (s *Service) Issuer() SessionIssuer { return s.issuer }

func (s *Service) ResetTokens() *ResetTokenGenerator { return s.resetTokens }

// RequestPreRegistration starts registration for email and returns the
// verification token that was sent.
func (s *Service) RequestPreRegistration(ctx context.Context, email string) (string, error) {
	var token string
	err := s.preRegistration.Execute(ctx, RequestPreRegistrationMessage{
		Email: email,
		OnResponse: func(resp *PreRegistrationResponse) {
			token = resp.Token
		},
	})
	return token, err
}

// ConsumeRegistrationToken verifies a registration token, creating the
// provisional account on first use.
func (s *Service) ConsumeRegistrationToken(ctx context.Context, token string) (*RegistrationVerifyResponse, error) {
	var out *RegistrationVerifyResponse
	err := s.verify.Execute(ctx, ConsumeRegistrationTokenMessage{
		Token: token,
		OnResponse: func(resp *RegistrationVerifyResponse) {
			out = resp
		},
	})
	return out, err
}

// CompleteProfile activates a provisional account.
func (s *Service) CompleteProfile(ctx context.Context, accountID string, profile ProfileInput) (*CompleteProfileResponse, error) {
	var out *CompleteProfileResponse
	err := s.profile.Execute(ctx, CompleteProfileMessage{
		AccountID: accountID,
		Profile:   profile,
		OnResponse: func(resp *CompleteProfileResponse) {
			out = resp
		},
	})
	return out, err
}

func (s *Service) RequestEmailChange(ctx context.Context, account OwnerRef, newEmail string) (*PendingEmailChange, error) {
	var out *PendingEmailChange
	err := s.emailChange.Execute(ctx, RequestEmailChangeMessage{
		Account:  account,
		NewEmail: newEmail,
		OnResponse: func(resp *EmailChangeResponse) {
			out = resp.Pending
		},
	})
	return out, err
}

func (s *Service) ResendEmailChange(ctx context.Context, newEmail string) (*PendingEmailChange, error) {
	var out *PendingEmailChange
	err := s.emailResend.Execute(ctx, ResendEmailChangeMessage{
		NewEmail: newEmail,
		OnResponse: func(resp *EmailChangeResponse) {
			out = resp.Pending
		},
	})
	return out, err
}

func (s *Service) VerifyEmailChange(ctx context.Context, token string) (CredentialHolder, error) {
	var out CredentialHolder
	err := s.emailVerify.Execute(ctx, VerifyEmailChangeMessage{
		Token: token,
		OnResponse: func(resp *VerifyEmailChangeResponse) {
			out = resp.Account
		},
	})
	return out, err
}

// RequestPasswordReset sends a reset link when email names an active
// account. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, kind AccountKind, email string) error {
	return s.resetRequest.Execute(ctx, RequestPasswordResetMessage{
		Kind:  kind,
		Email: email,
	})
}

func (s *Service) ResetPassword(ctx context.Context, uid, token, newPassword string) error {
	return s.resetFinalize.Execute(ctx, FinalizePasswordResetMessage{
		UID:         uid,
		Token:       token,
		NewPassword: newPassword,
	})
}

func (s *Service) VerifyResetToken(ctx context.Context, uid, token string) (*ResetTokenVerification, error) {
	var out *ResetTokenVerification
	err := s.resetVerify.Execute(ctx, VerifyResetTokenMessage{
		UID:   uid,
		Token: token,
		OnResponse: func(resp *ResetTokenVerification) {
			out = resp
		},
	})
	return out, err
}

func (s *Service) ResetPasswordByAccountID(ctx context.Context, msg ResetPasswordByIDMessage) error {
	return s.resetByID.Execute(ctx, msg)
}

func (s *Service) ChangePassword(ctx context.Context, account OwnerRef, oldPassword, newPassword string) error {
	return s.passwordChange.Execute(ctx, ChangePasswordMessage{
		Account:     account,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
}

func (s *Service) Authenticate(ctx context.Context, kind AccountKind, email, password string) (*LoginResponse, error) {
	var out *LoginResponse
	err := s.sessions.Login(ctx, LoginMessage{
		Kind:     kind,
		Email:    email,
		Password: password,
		OnResponse: func(resp *LoginResponse) {
			out = resp
		},
	})
	return out, err
}

func (s *Service) Logout(ctx context.Context, account OwnerRef) error {
	return s.sessions.Logout(ctx, LogoutMessage{Account: account})
}

func (s *Service) PurgeStale(ctx context.Context, olderThan time.Duration, dryRun bool) (*PurgeStaleResponse, error) {
	var out *PurgeStaleResponse
	err := s.purge.Execute(ctx, PurgeStaleMessage{
		OlderThan: olderThan,
		DryRun:    dryRun,
		OnResponse: func(resp *PurgeStaleResponse) {
			out = resp
		},
	})
	return out, err
}

func (s *Service) CreateAdmin(ctx context.Context, email, password string, superuser bool) (*Admin, error) {
	var out *Admin
	err := s.admins.Execute(ctx, CreateAdminMessage{
		Email:     email,
		Password:  password,
		Superuser: superuser,
		OnResponse: func(admin *Admin) {
			out = admin
		},
	})
	return out, err
}
