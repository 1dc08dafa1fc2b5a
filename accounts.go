package identity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// AccountKind tags the owner of a token or pending change.
type AccountKind string

const (
	KindEndUser         AccountKind = "end_user"
	KindAdmin           AccountKind = "admin"
	KindPreRegistration AccountKind = "pre_registration"
)

// DisplayPrefix returns the display id prefix for account kinds.
func (k AccountKind) DisplayPrefix() string {
	switch k {
	case KindEndUser:
		return "NU"
	case KindAdmin:
		return "NA"
	default:
		return ""
	}
}

// IsAccount reports whether k names a credentialed account variant.
func (k AccountKind) IsAccount() bool {
	return k == KindEndUser || k == KindAdmin
}

// ParseAccountKind maps a wire value to an account kind. Empty means end-user.
func ParseAccountKind(s string) (AccountKind, bool) {
	switch AccountKind(strings.TrimSpace(strings.ToLower(s))) {
	case "", KindEndUser, "user":
		return KindEndUser, true
	case KindAdmin:
		return KindAdmin, true
	default:
		return "", false
	}
}

// OwnerRef is a tagged reference to a token owner.
type OwnerRef struct {
	Kind AccountKind `json:"kind"`
	ID   string      `json:"id"`
}

func (r OwnerRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether the reference points nowhere.
func (r OwnerRef) IsZero() bool {
	return r.Kind == "" || r.ID == ""
}

// CredentialHolder is implemented by every account variant that can log in.
type CredentialHolder interface {
	Ref() OwnerRef
	GetEmail() string
	GetPasswordHash() string
	GetLastLoginAt() *time.Time
	IsActiveAccount() bool
	IsEmailVerified() bool
}

var (
	_ CredentialHolder = (*EndUser)(nil)
	_ CredentialHolder = (*Admin)(nil)
)

// KindForDisplayID infers the account kind from a display id prefix.
func KindForDisplayID(id string) (AccountKind, bool) {
	switch {
	case strings.HasPrefix(id, KindEndUser.DisplayPrefix()):
		return KindEndUser, true
	case strings.HasPrefix(id, KindAdmin.DisplayPrefix()):
		return KindAdmin, true
	default:
		return "", false
	}
}

// ValidatePassword applies the password length policy.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrNoEmptyString
	}
	if err := validation.Validate(password, validation.Length(8, 128)); err != nil {
		return ErrWeakPassword
	}
	return nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail normalizes email and checks its syntax.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if err := validation.Validate(normalized, validation.Required, is.Email); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// FormatDisplayID builds the id that follows last for prefix. An empty last
// yields the first id of the sequence.
func FormatDisplayID(prefix, last string) (string, error) {
	n := 0
	if last != "" {
		seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed display id %q: %w", last, err)
		}
		n = seq
	}
	return fmt.Sprintf("%s%05d", prefix, n+1), nil
}
