package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsWithinWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		t      time.Time
		window time.Duration
		want   bool
	}{
		{name: "inside", t: now.Add(-time.Hour), window: 2 * time.Hour, want: true},
		{name: "boundary is outside", t: now.Add(-2 * time.Hour), window: 2 * time.Hour, want: false},
		{name: "older", t: now.Add(-3 * time.Hour), window: 2 * time.Hour, want: false},
		{name: "future", t: now.Add(time.Minute), window: time.Hour, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinWindow(tt.t, tt.window, now))
		})
	}
}

func TestHasPassed(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, hasPassed(now, now))
	assert.True(t, hasPassed(now.Add(-time.Second), now))
	assert.False(t, hasPassed(now.Add(time.Second), now))
}

func TestExpiryHelpers(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	pre := &PreRegistration{ExpiresAt: now.Add(RegistrationTTL)}
	assert.False(t, pre.IsExpired(now))
	assert.True(t, pre.IsExpired(now.Add(RegistrationTTL)))

	token := &VerificationToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, token.IsExpired(now.Add(59*time.Minute)))
	assert.True(t, token.IsExpired(now.Add(time.Hour)))

	pending := &PendingEmailChange{CreatedAt: now}
	assert.False(t, pending.IsExpired(now.Add(EmailChangeTTL-time.Second)))
	assert.True(t, pending.IsExpired(now.Add(EmailChangeTTL)))
}
