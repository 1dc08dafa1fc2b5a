package httpapi

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	identity "github.com/nas-health/go-identity"
)

const birthdateLayout = "2006-01-02"

type validatable interface {
	Validate() error
}

type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type TokenRequest struct {
	Token string `json:"token" form:"token" query:"token"`
}

func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type LoginRequest struct {
	Kind     string `json:"kind" form:"kind"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.In(string(identity.KindEndUser), string(identity.KindAdmin))),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// CompleteRegistrationRequest carries the profile of a provisional account.
// Birthdate uses the YYYY-MM-DD layout.
type CompleteRegistrationRequest struct {
	Password  string  `json:"password"`
	Gender    string  `json:"gender"`
	Birthdate string  `json:"birthdate"`
	Height    float64 `json:"height"`
	Weight    float64 `json:"weight"`
	DeviceID  string  `json:"device_id"`
}

func (r CompleteRegistrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Gender, validation.Required),
		validation.Field(&r.Birthdate, validation.Required, validation.Date(birthdateLayout)),
	)
}

func (r CompleteRegistrationRequest) Profile() identity.ProfileInput {
	birthdate, _ := time.Parse(birthdateLayout, r.Birthdate)
	return identity.ProfileInput{
		Password:  r.Password,
		Gender:    r.Gender,
		Birthdate: birthdate,
		Height:    r.Height,
		Weight:    r.Weight,
		DeviceID:  r.DeviceID,
	}
}

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r PasswordChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type PasswordResetRequest struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
}

func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.In(string(identity.KindEndUser), string(identity.KindAdmin))),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type PasswordResetConfirmRequest struct {
	UID         string `json:"uid"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r PasswordResetConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type ResetTokenVerifyRequest struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (r ResetTokenVerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
	)
}

type PasswordResetByIDRequest struct {
	UserID      string `json:"user_id"`
	UID         string `json:"uid"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (r PasswordResetByIDRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type EmailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

func (r EmailChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, is.Email),
	)
}
