package identity

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// Config holds the options the identity service reads at construction time.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetLinkBaseURL() string
	GetTrustVerifiedResetByID() bool
}

// TxRunner runs f inside a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// SessionIssuer mints the access/refresh pair handed to clients once an
// account is authenticated or provisionally verified.
type SessionIssuer interface {
	Issue(ctx context.Context, holder CredentialHolder, temporary bool) (*SessionTokens, error)
}

// SessionTokens is the credential pair returned to clients.
type SessionTokens struct {
	AccessToken            string    `json:"access"`
	RefreshToken           string    `json:"refresh"`
	ExpiresAt              time.Time `json:"expires_at"`
	IsTemporary            bool      `json:"is_temporary"`
	NeedsProfileCompletion bool      `json:"needs_profile_completion"`
}

// AuditNotifier receives session boundary events.
type AuditNotifier interface {
	SessionStarted(ctx context.Context, ref OwnerRef) error
	SessionEnded(ctx context.Context, ref OwnerRef) error
}

// Clock returns the current time. Handlers accept one so tests can move time.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return utcNow
	}
	return c
}
