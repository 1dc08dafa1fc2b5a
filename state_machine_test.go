package identity_test

import (
	"testing"

	identity "github.com/nas-health/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRegistrationState(t *testing.T) {
	tests := []struct {
		name     string
		from     identity.RegistrationState
		event    identity.RegistrationEvent
		want     identity.RegistrationState
		wantKind string
	}{
		{name: "new email", from: identity.StateNone, event: identity.EventRequestPreRegistration, want: identity.StatePreRegistered},
		{name: "repeat request", from: identity.StatePreRegistered, event: identity.EventRequestPreRegistration, want: identity.StatePreRegistered},
		{name: "token consumed", from: identity.StatePreRegistered, event: identity.EventConsumeRegistrationToken, want: identity.StateProvisional},
		{name: "provisional replay", from: identity.StateProvisional, event: identity.EventConsumeRegistrationToken, want: identity.StateProvisional},
		{name: "provisional reclaimed", from: identity.StateProvisional, event: identity.EventRequestPreRegistration, want: identity.StatePreRegistered},
		{name: "profile completed", from: identity.StateProvisional, event: identity.EventCompleteProfile, want: identity.StateActive},
		{name: "active profile update", from: identity.StateActive, event: identity.EventCompleteProfile, want: identity.StateActive},
		{
			name:     "active refuses pre-registration",
			from:     identity.StateActive,
			event:    identity.EventRequestPreRegistration,
			want:     identity.StateActive,
			wantKind: identity.TextCodeAlreadyRegistered,
		},
		{
			name:     "active refuses token",
			from:     identity.StateActive,
			event:    identity.EventConsumeRegistrationToken,
			want:     identity.StateActive,
			wantKind: identity.TextCodeUserAlreadyActive,
		},
		{
			name:     "profile before token",
			from:     identity.StatePreRegistered,
			event:    identity.EventCompleteProfile,
			want:     identity.StatePreRegistered,
			wantKind: "INVALID_REGISTRATION_TRANSITION",
		},
		{
			name:     "token without pre-registration",
			from:     identity.StateNone,
			event:    identity.EventConsumeRegistrationToken,
			want:     identity.StateNone,
			wantKind: "INVALID_REGISTRATION_TRANSITION",
		},
		{
			name:     "unknown state",
			from:     identity.RegistrationState("DELETED"),
			event:    identity.EventCompleteProfile,
			want:     identity.RegistrationState("DELETED"),
			wantKind: "INVALID_REGISTRATION_TRANSITION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity.NextRegistrationState(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantKind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, identity.ErrorKind(err))
		})
	}
}

func TestRegistrationStateOf(t *testing.T) {
	hash, err := identity.HashPassword("secret123")
	require.NoError(t, err)

	pre := &identity.PreRegistration{Email: "a@x.com"}

	assert.Equal(t, identity.StateNone, identity.RegistrationStateOf(nil, nil))
	assert.Equal(t, identity.StatePreRegistered, identity.RegistrationStateOf(pre, nil))
	assert.Equal(t, identity.StateProvisional, identity.RegistrationStateOf(pre, &identity.EndUser{PasswordHash: hash}))
	assert.Equal(t, identity.StateProvisional, identity.RegistrationStateOf(nil, &identity.EndUser{
		EmailVerified: true,
		PasswordHash:  identity.UnusablePasswordPrefix,
	}))
	assert.Equal(t, identity.StateActive, identity.RegistrationStateOf(pre, &identity.EndUser{
		EmailVerified: true,
		PasswordHash:  hash,
	}))
}
