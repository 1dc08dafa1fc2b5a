package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAlreadyRegistered       = "ALREADY_REGISTERED"
	TextCodeTokenNotFound           = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodePreRegistrationNotFound = "PRE_REGISTRATION_NOT_FOUND"
	TextCodeUserNotFound            = "USER_NOT_FOUND"
	TextCodeUserAlreadyActive       = "USER_ALREADY_ACTIVE"
	TextCodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidToken            = "INVALID_TOKEN"
	TextCodeInvalidLink             = "INVALID_LINK"
	TextCodeLinkExpired             = "LINK_EXPIRED"
	TextCodeInvalidEmail            = "INVALID_EMAIL"
	TextCodeEmailInUse              = "EMAIL_IN_USE"
	TextCodePendingChangeNotFound   = "PENDING_CHANGE_NOT_FOUND"
	TextCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	TextCodeAccountInactive         = "ACCOUNT_INACTIVE"
	TextCodeInvalidProfile          = "INVALID_PROFILE"
	TextCodeEmptyPassword           = "EMPTY_PASSWORD"
	TextCodeWeakPassword            = "WEAK_PASSWORD"
)

// ErrAlreadyRegistered is returned when a completed account already owns the email.
var ErrAlreadyRegistered = goerrors.New("this email address is already registered, please log in", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(goerrors.CodeConflict)

// ErrTokenNotFound is returned when a registration token does not resolve.
var ErrTokenNotFound = goerrors.New("the verification link is invalid", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned for registration and email change tokens past their expiry.
var ErrTokenExpired = goerrors.New("the verification link has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrPreRegistrationNotFound is returned when a registration token owns no pre-registration.
var ErrPreRegistrationNotFound = goerrors.New("pre-registration could not be found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePreRegistrationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotFound is returned when a used pre-registration has no account behind it.
var ErrUserNotFound = goerrors.New("user could not be found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserAlreadyActive is returned when registration for the email was already completed.
var ErrUserAlreadyActive = goerrors.New("registration for this email address is already complete", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyActive).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when an account id does not resolve.
var ErrAccountNotFound = goerrors.New("account could not be found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidToken is returned when an email change token is unknown or already verified.
var ErrInvalidToken = goerrors.New("the confirmation link is invalid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidLink is returned when a password reset uid cannot be resolved.
var ErrInvalidLink = goerrors.New("the reset link is invalid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidLink).
	WithCode(goerrors.CodeBadRequest)

// ErrLinkExpired is returned when a password reset token no longer matches the account.
var ErrLinkExpired = goerrors.New("the reset link has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeLinkExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEmail is returned for syntactically invalid addresses.
var ErrInvalidEmail = goerrors.New("the email address is not valid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailInUse is returned when another live account already holds the address.
var ErrEmailInUse = goerrors.New("the email address is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrPendingChangeNotFound is returned when there is no unverified change to resend.
var ErrPendingChangeNotFound = goerrors.New("no pending email change was found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePendingChangeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned when an email/password pair does not match.
var ErrInvalidCredentials = goerrors.New("the email address or password is incorrect", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when a disabled account tries to log in.
var ErrAccountInactive = goerrors.New("this account has been disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrWeakPassword is returned when a new password fails the length policy.
var ErrWeakPassword = goerrors.New("password must be between 8 and 128 characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrorKind returns the text code of a business error, or "" for anything else.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsUniqueViolation reports whether err was raised by a unique or primary key
// constraint in SQLite or PostgreSQL.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func invalidProfile(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "profile is not valid").
		WithTextCode(TextCodeInvalidProfile).
		WithCode(goerrors.CodeBadRequest)
}

func asRichError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
