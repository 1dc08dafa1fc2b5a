package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/nas-health/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) requestReset(t *testing.T, email string) (uid, token string) {
	t.Helper()
	require.NoError(t, e.svc.RequestPasswordReset(context.Background(), identity.KindEndUser, email))

	note := e.notifier.Last(t)
	require.Equal(t, identity.NotifyPasswordReset, note.Kind)
	return note.Payload[identity.PayloadUID], note.Payload[identity.PayloadToken]
}

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	uid, token := env.requestReset(t, "a@x.com")
	assert.Equal(t, identity.EncodeUID(user.ID), uid)
	assert.Contains(t, env.notifier.Last(t).Payload[identity.PayloadLink], "action=password-reset")

	check, err := env.svc.VerifyResetToken(ctx, uid, token)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, user.ID, check.AccountID)
	assert.Equal(t, "a@x.com", check.Email)

	require.NoError(t, env.svc.ResetPassword(ctx, uid, token, "another-pass"))
	assert.NoError(t, identity.ComparePasswordAndHash("another-pass", env.user(t, user.ID).PasswordHash))

	err = env.svc.ResetPassword(ctx, uid, token, "third-pass-1")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeLinkExpired, identity.ErrorKind(err))

	assert.Len(t, env.sink.Events(identity.ActivityEventPasswordResetSuccess), 1)
}

func TestPasswordChangeInvalidatesResetToken(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	uid, token := env.requestReset(t, "a@x.com")

	require.NoError(t, env.svc.ChangePassword(ctx, user.Ref(), "secret123", "changed-pass"))

	err := env.svc.ResetPassword(ctx, uid, token, "another-pass")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeLinkExpired, identity.ErrorKind(err))
	assert.NoError(t, identity.ComparePasswordAndHash("changed-pass", env.user(t, user.ID).PasswordHash))
}

func TestLoginInvalidatesResetToken(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	env.registerActive(t, "a@x.com", "secret123")

	uid, token := env.requestReset(t, "a@x.com")

	_, err := env.svc.Authenticate(ctx, identity.KindEndUser, "a@x.com", "secret123")
	require.NoError(t, err)

	check, err := env.svc.VerifyResetToken(ctx, uid, token)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Empty(t, check.AccountID)
}

func TestPasswordResetTokenExpires(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	env.registerActive(t, "a@x.com", "secret123")

	uid, token := env.requestReset(t, "a@x.com")
	env.clock.Advance(72*time.Hour + time.Second)

	err := env.svc.ResetPassword(ctx, uid, token, "another-pass")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeLinkExpired, identity.ErrorKind(err))
}

func TestPasswordResetRejectsBadLinks(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	env.registerActive(t, "a@x.com", "secret123")
	_, token := env.requestReset(t, "a@x.com")

	for name, uid := range map[string]string{
		"not base64":     "%%%",
		"unknown prefix": identity.EncodeUID("XX00001"),
		"unknown id":     identity.EncodeUID("NU09999"),
	} {
		t.Run(name, func(t *testing.T) {
			err := env.svc.ResetPassword(ctx, uid, token, "another-pass")
			require.Error(t, err)
			assert.Equal(t, identity.TextCodeInvalidLink, identity.ErrorKind(err))
		})
	}
}

func TestPasswordResetRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	env.registerActive(t, "a@x.com", "secret123")
	uid, token := env.requestReset(t, "a@x.com")

	err := env.svc.ResetPassword(context.Background(), uid, token, "short")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeWeakPassword, identity.ErrorKind(err))
}

func TestPasswordResetRequestIsSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t, testConfig{})

	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), identity.KindEndUser, "ghost@x.com"))
	assert.Empty(t, env.notifier.Sent())
	assert.Empty(t, env.sink.Events(identity.ActivityEventPasswordResetRequested))
}

func TestPasswordResetForAdmin(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()

	admin, err := env.svc.CreateAdmin(ctx, "ops@x.com", "admin-pass-1", true)
	require.NoError(t, err)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, identity.KindAdmin, "ops@x.com"))
	note := env.notifier.Last(t)
	assert.Equal(t, identity.EncodeUID(admin.ID), note.Payload[identity.PayloadUID])

	require.NoError(t, env.svc.ResetPassword(ctx, note.Payload[identity.PayloadUID], note.Payload[identity.PayloadToken], "fresh-admin-pass"))

	resp, err := env.svc.Authenticate(ctx, identity.KindAdmin, "ops@x.com", "fresh-admin-pass")
	require.NoError(t, err)
	assert.Equal(t, admin.Ref(), resp.Account.Ref())
}

func TestResetPasswordByAccountIDReverifiesLink(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")
	other := env.registerActive(t, "b@x.com", "secret123")

	uid, token := env.requestReset(t, "a@x.com")

	err := env.svc.ResetPasswordByAccountID(ctx, identity.ResetPasswordByIDMessage{
		AccountID:   user.ID,
		NewPassword: "another-pass",
	})
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidLink, identity.ErrorKind(err))

	err = env.svc.ResetPasswordByAccountID(ctx, identity.ResetPasswordByIDMessage{
		AccountID:   other.ID,
		UID:         uid,
		Token:       token,
		NewPassword: "another-pass",
	})
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidLink, identity.ErrorKind(err))

	require.NoError(t, env.svc.ResetPasswordByAccountID(ctx, identity.ResetPasswordByIDMessage{
		AccountID:   user.ID,
		UID:         uid,
		Token:       token,
		NewPassword: "another-pass",
	}))
	assert.NoError(t, identity.ComparePasswordAndHash("another-pass", env.user(t, user.ID).PasswordHash))
	assert.NoError(t, identity.ComparePasswordAndHash("secret123", env.user(t, other.ID).PasswordHash))
}

func TestResetPasswordByAccountIDTrusted(t *testing.T) {
	env := newTestEnv(t, testConfig{trustVerified: true})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	require.NoError(t, env.svc.ResetPasswordByAccountID(ctx, identity.ResetPasswordByIDMessage{
		AccountID:   user.ID,
		NewPassword: "another-pass",
	}))
	assert.NoError(t, identity.ComparePasswordAndHash("another-pass", env.user(t, user.ID).PasswordHash))

	events := env.sink.Events(identity.ActivityEventPasswordResetSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0].Metadata["trust_verified"])

	err := env.svc.ResetPasswordByAccountID(ctx, identity.ResetPasswordByIDMessage{
		AccountID:   "NU09999",
		NewPassword: "another-pass",
	})
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeAccountNotFound, identity.ErrorKind(err))
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	err := env.svc.ChangePassword(ctx, user.Ref(), "wrong-pass", "changed-pass")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidCredentials, identity.ErrorKind(err))

	err = env.svc.ChangePassword(ctx, user.Ref(), "secret123", "")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeEmptyPassword, identity.ErrorKind(err))

	assert.NoError(t, identity.ComparePasswordAndHash("secret123", env.user(t, user.ID).PasswordHash))
	assert.Empty(t, env.sink.Events(identity.ActivityEventPasswordChanged))
}
