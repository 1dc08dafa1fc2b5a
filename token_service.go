package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = 5 * time.Minute
	DefaultRefreshTokenTTL = 24 * time.Hour

	TextCodeSessionExpired   = "SESSION_EXPIRED"
	TextCodeSessionMalformed = "SESSION_MALFORMED"
)

// ErrSessionExpired is returned when validating an expired session token.
var ErrSessionExpired = goerrors.New("session has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionMalformed is returned for tokens that fail to parse or verify.
var ErrSessionMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMalformed).
	WithCode(goerrors.CodeUnauthorized)

// JWTSessionIssuer signs HS256 access/refresh pairs.
type JWTSessionIssuer struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        Clock
	logger     Logger
}

var _ SessionIssuer = (*JWTSessionIssuer)(nil)

// SessionIssuerOption customizes a JWTSessionIssuer.
type SessionIssuerOption func(*JWTSessionIssuer)

// WithSessionClock injects the clock used for issued-at and expiry claims.
func WithSessionClock(clock Clock) SessionIssuerOption {
	return func(s *JWTSessionIssuer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionLogger overrides the issuer logger.
func WithSessionLogger(logger Logger) SessionIssuerOption {
	return func(s *JWTSessionIssuer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewJWTSessionIssuer builds an issuer from cfg. Zero TTLs fall back to the
// package defaults.
func NewJWTSessionIssuer(cfg Config, opts ...SessionIssuerOption) *JWTSessionIssuer {
	s := &JWTSessionIssuer{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		now:        utcNow,
		logger:     defLogger{name: "identity.session"},
	}

	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTokenTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue mints the session pair for holder.
func (s *JWTSessionIssuer) Issue(ctx context.Context, holder CredentialHolder, temporary bool) (*SessionTokens, error) {
	if holder == nil {
		return nil, goerrors.New("credential holder must not be nil", goerrors.CategoryInternal)
	}

	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while issuing session")
	default:
	}

	now := s.now()
	needsCompletion := !holder.IsEmailVerified()

	access, accessExp, err := s.sign(holder, temporary, needsCompletion, TokenUseAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, _, err := s.sign(holder, temporary, needsCompletion, TokenUseRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &SessionTokens{
		AccessToken:            access,
		RefreshToken:           refresh,
		ExpiresAt:              accessExp,
		IsTemporary:            temporary,
		NeedsProfileCompletion: needsCompletion,
	}, nil
}

func (s *JWTSessionIssuer) sign(holder CredentialHolder, temporary, needsCompletion bool, use TokenUse, now time.Time, ttl time.Duration) (string, time.Time, error) {
	ref := holder.Ref()
	expiresAt := now.Add(ttl)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   ref.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:                    ref.ID,
		Kind:                   ref.Kind,
		IsTemporary:            temporary,
		NeedsProfileCompletion: needsCompletion,
		TokenUse:               use,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, expiresAt, nil
}

// Validate parses and validates a session token, returning its claims.
func (s *JWTSessionIssuer) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("session validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, ErrSessionMalformed.Category, ErrSessionMalformed.Message).
			WithTextCode(ErrSessionMalformed.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	s.logger.Error("session validate could not decode claims")
	return nil, ErrSessionMalformed
}
