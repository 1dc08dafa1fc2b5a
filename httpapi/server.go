// Package httpapi exposes the identity flows as a JSON API.
package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-router"
	identity "github.com/nas-health/go-identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionLocalsKey = "identity.session"

// SessionValidator checks bearer tokens.
type SessionValidator interface {
	Validate(token string) (*identity.SessionClaims, error)
}

type Option func(*Server)

func WithLogger(logger identity.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer exposes gatherer on GET /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

type Server struct {
	svc      *identity.Service
	sessions SessionValidator
	logger   identity.Logger
	gatherer prometheus.Gatherer
}

// New builds the router server for the identity API.
func New(svc *identity.Service, sessions SessionValidator, opts ...Option) router.Server[*fiber.App] {
	s := &Server{
		svc:      svc,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	_, s.logger = identity.ResolveLogger("identity.http", nil, s.logger)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "nas-identity",
			DisableStartupMessage: true,
			ErrorHandler:          s.errorHandler,
		})

		if s.gatherer != nil {
			app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
		}
		return app
	})

	RegisterRoutes(srv.Router().Group("/api/auth"), s)
	return srv
}

// RegisterRoutes mounts the identity endpoints on app.
func RegisterRoutes[T any](app router.Router[T], s *Server) {
	bearer := s.requireSession()

	app.Post("/pre-register", s.preRegister).SetName("identity.pre-register")
	app.Get("/verify-email", s.verifyEmail).SetName("identity.verify-email.get")
	app.Post("/verify-email", s.verifyEmail).SetName("identity.verify-email.post")
	app.Post("/complete-registration", s.completeRegistration, bearer).SetName("identity.complete-registration")

	app.Post("/login", s.login).SetName("identity.login")
	app.Post("/logout", s.logout, bearer).SetName("identity.logout")

	app.Post("/password-change", s.passwordChange, bearer).SetName("identity.password-change")
	app.Post("/password-reset", s.passwordReset).SetName("identity.password-reset")
	app.Post("/password-reset-confirm", s.passwordResetConfirm).SetName("identity.password-reset-confirm")
	app.Post("/password-reset-token-verify", s.passwordResetTokenVerify).SetName("identity.password-reset-token-verify")
	app.Post("/password-reset-by-user-id", s.passwordResetByUserID).SetName("identity.password-reset-by-user-id")

	app.Post("/email-change", s.emailChange, bearer).SetName("identity.email-change")
	app.Post("/email-change-resend", s.emailChangeResend).SetName("identity.email-change-resend")
	app.Get("/email-change-confirm", s.emailChangeConfirm).SetName("identity.email-change-confirm.get")
	app.Post("/email-change-confirm", s.emailChangeConfirm).SetName("identity.email-change-confirm.post")
}

func bind(c router.Context, payload validatable) error {
	if c.Method() == fiber.MethodGet {
		if err := c.BindQuery(payload); err != nil {
			return invalidPayload(err)
		}
	} else if len(c.Body()) > 0 {
		if err := c.Bind(payload); err != nil {
			return invalidPayload(err)
		}
	}

	if err := payload.Validate(); err != nil {
		return invalidPayload(err)
	}
	return nil
}
