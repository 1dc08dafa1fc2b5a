package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/nas-health/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailChangeVerifiesOnce(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()

	user := env.registerActive(t, "a@x.com", "secret123")

	pending, err := env.svc.RequestEmailChange(ctx, user.Ref(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", pending.NewEmail)
	assert.Equal(t, user.Ref(), pending.Owner())

	note := env.notifier.Last(t)
	assert.Equal(t, "b@x.com", note.Recipient)
	assert.Equal(t, identity.NotifyEmailChangeVerify, note.Kind)
	assert.Equal(t, pending.Token, note.Payload[identity.PayloadToken])

	account, err := env.svc.VerifyEmailChange(ctx, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", account.GetEmail())
	assert.Equal(t, "b@x.com", env.user(t, user.ID).Email)

	_, err = env.svc.VerifyEmailChange(ctx, pending.Token)
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidToken, identity.ErrorKind(err))

	assert.Len(t, env.sink.Events(identity.ActivityEventEmailChanged), 1)
}

func TestEmailChangeReclaimsProvisionalAddress(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()

	user := env.registerActive(t, "a@x.com", "secret123")
	squatter := env.registerProvisional(t, "b@x.com")

	pending, err := env.svc.RequestEmailChange(ctx, user.Ref(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0, countRows(t, env.db, "end_users", "id = ?", squatter.User.ID))

	_, err = env.svc.VerifyEmailChange(ctx, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", env.user(t, user.ID).Email)
}

func TestEmailChangeRefusesAddressInUse(t *testing.T) {
	env := newTestEnv(t, testConfig{})

	user := env.registerActive(t, "a@x.com", "secret123")
	env.registerActive(t, "b@x.com", "secret123")
	sentBefore := len(env.notifier.Sent())

	_, err := env.svc.RequestEmailChange(context.Background(), user.Ref(), "B@x.com")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeEmailInUse, identity.ErrorKind(err))
	assert.Len(t, env.notifier.Sent(), sentBefore)
	assert.Equal(t, 0, countRows(t, env.db, "pending_email_changes", ""))
}

func TestEmailChangeKeepsActiveAccountWithoutMeasurements(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()

	owner := env.registerProvisional(t, "victim@x.com").User
	_, err := env.svc.CompleteProfile(ctx, owner.ID, identity.ProfileInput{
		Password:  "secret123",
		Gender:    identity.GenderFemale,
		Birthdate: time.Date(1990, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	other := env.registerActive(t, "other@x.com", "secret123")

	_, err = env.svc.RequestEmailChange(ctx, other.Ref(), "victim@x.com")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeEmailInUse, identity.ErrorKind(err))

	kept := env.user(t, owner.ID)
	assert.Equal(t, "victim@x.com", kept.Email)
	assert.True(t, kept.EmailVerified)
	assert.Equal(t, "other@x.com", env.user(t, other.ID).Email)
}

func TestEmailChangeRejectsInvalidAddress(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	user := env.registerActive(t, "a@x.com", "secret123")

	_, err := env.svc.RequestEmailChange(context.Background(), user.Ref(), "b@")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidEmail, identity.ErrorKind(err))
}

func TestEmailChangeUnknownAccount(t *testing.T) {
	env := newTestEnv(t, testConfig{})

	_, err := env.svc.RequestEmailChange(context.Background(),
		identity.OwnerRef{Kind: identity.KindEndUser, ID: "NU04242"}, "b@x.com")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeAccountNotFound, identity.ErrorKind(err))
}

func TestEmailChangeSupersedesOwnPendingChange(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	first, err := env.svc.RequestEmailChange(ctx, user.Ref(), "b@x.com")
	require.NoError(t, err)

	second, err := env.svc.RequestEmailChange(ctx, user.Ref(), "c@x.com")
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, env.db, "pending_email_changes", "owner_id = ?", user.ID))

	_, err = env.svc.VerifyEmailChange(ctx, first.Token)
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeInvalidToken, identity.ErrorKind(err))

	account, err := env.svc.VerifyEmailChange(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", account.GetEmail())
}

func TestEmailChangeResendKeepsToken(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	pending, err := env.svc.RequestEmailChange(ctx, user.Ref(), "b@x.com")
	require.NoError(t, err)
	sentBefore := len(env.notifier.Sent())

	resent, err := env.svc.ResendEmailChange(ctx, "B@X.com")
	require.NoError(t, err)
	assert.Equal(t, pending.Token, resent.Token)
	assert.Len(t, env.notifier.Sent(), sentBefore+1)
	assert.Equal(t, pending.Token, env.notifier.Last(t).Payload[identity.PayloadToken])
}

func TestEmailChangeResendWithoutPendingChange(t *testing.T) {
	env := newTestEnv(t, testConfig{})

	_, err := env.svc.ResendEmailChange(context.Background(), "nobody@x.com")
	require.Error(t, err)
	assert.Equal(t, identity.TextCodePendingChangeNotFound, identity.ErrorKind(err))
	assert.Empty(t, env.notifier.Sent())
}

func TestEmailChangeExpiredTokenLeavesEmail(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()
	user := env.registerActive(t, "a@x.com", "secret123")

	pending, err := env.svc.RequestEmailChange(ctx, user.Ref(), "b@x.com")
	require.NoError(t, err)

	env.clock.Advance(identity.EmailChangeTTL + time.Minute)

	_, err = env.svc.VerifyEmailChange(ctx, pending.Token)
	require.Error(t, err)
	assert.Equal(t, identity.TextCodeTokenExpired, identity.ErrorKind(err))
	assert.Equal(t, "a@x.com", env.user(t, user.ID).Email)
	assert.Equal(t, 1, countRows(t, env.db, "pending_email_changes", "is_verified = ?", false))
}

func TestEmailChangeForAdmin(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	ctx := context.Background()

	admin, err := env.svc.CreateAdmin(ctx, "ops@x.com", "admin-pass-1", false)
	require.NoError(t, err)

	pending, err := env.svc.RequestEmailChange(ctx, admin.Ref(), "ops2@x.com")
	require.NoError(t, err)
	assert.Equal(t, identity.KindAdmin, pending.OwnerKind)

	account, err := env.svc.VerifyEmailChange(ctx, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.Ref(), account.Ref())
	assert.Equal(t, "ops2@x.com", account.GetEmail())
}
