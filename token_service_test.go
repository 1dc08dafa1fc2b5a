package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	identity "github.com/nas-health/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTSessionIssuerRoundTrip(t *testing.T) {
	clock := newTestClock()
	issuer := identity.NewJWTSessionIssuer(testConfig{}, identity.WithSessionClock(clock.Now))

	user := &identity.EndUser{ID: "NU00007", Email: "a@x.com"}
	session, err := issuer.Issue(context.Background(), user, true)
	require.NoError(t, err)
	assert.True(t, session.IsTemporary)
	assert.True(t, session.NeedsProfileCompletion)
	assert.Equal(t, clock.Now().Add(5*time.Minute), session.ExpiresAt)

	claims, err := issuer.Validate(session.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAccess())
	assert.Equal(t, user.Ref(), claims.Owner())
	assert.Equal(t, "nas-identity-test", claims.Issuer)
	assert.True(t, claims.IsTemporary)
	assert.True(t, session.ExpiresAt.Equal(claims.Expires()))
	assert.NotEmpty(t, claims.ID)

	refresh, err := issuer.Validate(session.RefreshToken)
	require.NoError(t, err)
	assert.False(t, refresh.IsAccess())
	assert.Equal(t, identity.TokenUseRefresh, refresh.TokenUse)
}

func TestJWTSessionIssuerVerifiedAccount(t *testing.T) {
	issuer := identity.NewJWTSessionIssuer(testConfig{}, identity.WithSessionClock(newTestClock().Now))

	admin := &identity.Admin{ID: "NA00001", Email: "ops@x.com", EmailVerified: true}
	session, err := issuer.Issue(context.Background(), admin, false)
	require.NoError(t, err)
	assert.False(t, session.IsTemporary)
	assert.False(t, session.NeedsProfileCompletion)

	claims, err := issuer.Validate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.KindAdmin, claims.Kind)
}

func TestJWTSessionIssuerExpiry(t *testing.T) {
	clock := newTestClock()
	issuer := identity.NewJWTSessionIssuer(testConfig{}, identity.WithSessionClock(clock.Now))

	session, err := issuer.Issue(context.Background(), &identity.EndUser{ID: "NU00001"}, false)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)

	_, err = issuer.Validate(session.AccessToken)
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeSessionExpired, identity.ErrorKind(err))

	_, err = issuer.Validate(session.RefreshToken)
	assert.NoError(t, err)
}

func TestJWTSessionIssuerRejectsForeignTokens(t *testing.T) {
	clock := newTestClock()
	issuer := identity.NewJWTSessionIssuer(testConfig{}, identity.WithSessionClock(clock.Now))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &identity.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "nas-identity-test",
			Subject:   "NU00001",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		TokenUse: identity.TokenUseAccess,
	})
	signed, err := foreign.SignedString([]byte("another-key"))
	require.NoError(t, err)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, &identity.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "NU00001",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		TokenUse: identity.TokenUseAccess,
	})
	otherIssuer, err := wrongIssuer.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.jwt",
		"wrong key":    signed,
		"wrong issuer": otherIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Validate(token)
			require.Error(t, err)
			assert.Equal(t, identity.TextCodeSessionMalformed, identity.ErrorKind(err))
		})
	}
}

func TestJWTSessionIssuerCancelledContext(t *testing.T) {
	issuer := identity.NewJWTSessionIssuer(testConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := issuer.Issue(ctx, &identity.EndUser{ID: "NU00001"}, false)
	assert.Error(t, err)
}

func TestSessionClaimsOwnerFallsBackToSubject(t *testing.T) {
	claims := &identity.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "NU00003"},
		Kind:             identity.KindEndUser,
	}
	assert.Equal(t, identity.OwnerRef{Kind: identity.KindEndUser, ID: "NU00003"}, claims.Owner())
	assert.True(t, claims.Expires().IsZero())
}
