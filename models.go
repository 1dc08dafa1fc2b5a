package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Gender values accepted on profile completion.
const (
	GenderMale   = "男性"
	GenderFemale = "女性"
)

// TokenType names what a verification token authorizes.
type TokenType string

const (
	TokenRegistration  TokenType = "REGISTRATION"
	TokenPasswordReset TokenType = "PASSWORD_RESET"
	TokenEmailChange   TokenType = "EMAIL_CHANGE"
)

const (
	// DefaultTokenTTL applies when a flow does not pick its own expiry.
	DefaultTokenTTL = time.Hour
	// RegistrationTTL bounds pre-registrations and their tokens.
	RegistrationTTL = 24 * time.Hour
	// EmailChangeTTL bounds pending email changes, measured from creation.
	EmailChangeTTL = 24 * time.Hour
)

// EndUser is an ordinary account of the tracking apps.
type EndUser struct {
	bun.BaseModel `bun:"table:end_users,alias:eu"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	IsStaff       bool       `bun:"is_staff,notnull" json:"is_staff"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	Gender        string     `bun:"gender,notnull" json:"gender"`
	Birthdate     *time.Time `bun:"birthdate,nullzero" json:"birthdate,omitempty"`
	Height        float64    `bun:"height,notnull" json:"height"`
	Weight        float64    `bun:"weight,notnull" json:"weight"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	DateJoined    time.Time  `bun:"date_joined,notnull" json:"date_joined"`
}

func (u *EndUser) Ref() OwnerRef              { return OwnerRef{Kind: KindEndUser, ID: u.ID} }
func (u *EndUser) GetEmail() string           { return u.Email }
func (u *EndUser) GetPasswordHash() string    { return u.PasswordHash }
func (u *EndUser) GetLastLoginAt() *time.Time { return u.LastLoginAt }
func (u *EndUser) IsActiveAccount() bool      { return u.IsActive }
func (u *EndUser) IsEmailVerified() bool      { return u.EmailVerified }

// IsStale reports whether the account never got past profile completion and
// may be reclaimed by a new registration.
func (u *EndUser) IsStale() bool {
	return !u.IsStaff && !u.EmailVerified && u.Height == 0 && u.Weight == 0
}

// Admin is a back office account.
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	IsStaff       bool       `bun:"is_staff,notnull" json:"is_staff"`
	IsSuperuser   bool       `bun:"is_superuser,notnull" json:"is_superuser"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	DateJoined    time.Time  `bun:"date_joined,notnull" json:"date_joined"`
}

func (a *Admin) Ref() OwnerRef              { return OwnerRef{Kind: KindAdmin, ID: a.ID} }
func (a *Admin) GetEmail() string           { return a.Email }
func (a *Admin) GetPasswordHash() string    { return a.PasswordHash }
func (a *Admin) GetLastLoginAt() *time.Time { return a.LastLoginAt }
func (a *Admin) IsActiveAccount() bool      { return a.IsActive }
func (a *Admin) IsEmailVerified() bool      { return a.EmailVerified }

// PreRegistration is an email-only registration awaiting verification.
type PreRegistration struct {
	bun.BaseModel `bun:"table:pre_registrations,alias:prr"`
	ID            uuid.UUID `bun:"id,pk,type:text" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Token         string    `bun:"token,notnull,unique" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	IsUsed        bool      `bun:"is_used,notnull" json:"is_used"`
}

func (p *PreRegistration) Ref() OwnerRef {
	return OwnerRef{Kind: KindPreRegistration, ID: p.ID.String()}
}

// IsExpired reports whether the pre-registration is past its expiry at now.
func (p *PreRegistration) IsExpired(now time.Time) bool {
	return hasPassed(p.ExpiresAt, now)
}

// VerificationToken is a single use secret bound to one owner.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`
	ID            uuid.UUID   `bun:"id,pk,type:text" json:"id"`
	Token         string      `bun:"token,notnull,unique" json:"-"`
	TokenType     TokenType   `bun:"token_type,notnull" json:"token_type"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at"`
	OwnerKind     AccountKind `bun:"owner_kind,notnull" json:"owner_kind"`
	OwnerID       string      `bun:"owner_id,notnull" json:"owner_id"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
}

func (t *VerificationToken) Owner() OwnerRef {
	return OwnerRef{Kind: t.OwnerKind, ID: t.OwnerID}
}

// IsExpired reports whether the token is past its expiry at now.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return hasPassed(t.ExpiresAt, now)
}

// PendingEmailChange stages a new address until its token is verified.
type PendingEmailChange struct {
	bun.BaseModel `bun:"table:pending_email_changes,alias:pec"`
	ID            uuid.UUID   `bun:"id,pk,type:text" json:"id"`
	OwnerKind     AccountKind `bun:"owner_kind,notnull" json:"owner_kind"`
	OwnerID       string      `bun:"owner_id,notnull" json:"owner_id"`
	NewEmail      string      `bun:"new_email,notnull,unique" json:"new_email"`
	Token         string      `bun:"token,notnull,unique" json:"-"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	IsVerified    bool        `bun:"is_verified,notnull" json:"is_verified"`
}

func (p *PendingEmailChange) Owner() OwnerRef {
	return OwnerRef{Kind: p.OwnerKind, ID: p.OwnerID}
}

// IsExpired reports whether at least EmailChangeTTL elapsed since creation.
func (p *PendingEmailChange) IsExpired(now time.Time) bool {
	return !IsWithinWindow(p.CreatedAt, EmailChangeTTL, now)
}

// Device is a client installation registered to an end-user.
type Device struct {
	bun.BaseModel `bun:"table:devices,alias:dev"`
	ID            uuid.UUID `bun:"id,pk,type:text" json:"id"`
	DeviceID      string    `bun:"device_id,notnull,unique" json:"device_id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
