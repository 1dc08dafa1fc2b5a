package httpapi

import (
	"strings"

	"github.com/goliatone/go-router"
	identity "github.com/nas-health/go-identity"
)

// requireSession rejects requests without a valid access token and stores
// the claims in the request locals.
func (s *Server) requireSession() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			scheme, token, ok := strings.Cut(ctx.Header(router.HeaderAuthorization), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return ErrMissingBearer
			}

			claims, err := s.sessions.Validate(strings.TrimSpace(token))
			if err != nil {
				return err
			}

			if !claims.IsAccess() {
				return identity.ErrSessionMalformed
			}

			ctx.Locals(sessionLocalsKey, claims)
			return hf(ctx)
		}
	}
}

func sessionFrom(ctx router.Context) (*identity.SessionClaims, error) {
	claims, ok := ctx.Locals(sessionLocalsKey).(*identity.SessionClaims)
	if !ok || claims == nil {
		return nil, ErrMissingBearer
	}
	return claims, nil
}
