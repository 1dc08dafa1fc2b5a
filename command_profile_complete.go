package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// ProfileInput is the data collected when a provisional account completes
// registration.
type ProfileInput struct {
	Password  string    `json:"password,omitempty"`
	Gender    string    `json:"gender"`
	Birthdate time.Time `json:"birthdate"`
	Height    float64   `json:"height,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
}

// Validate checks the profile fields.
func (p ProfileInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, validation.Length(8, 128)),
		validation.Field(&p.Gender, validation.Required, validation.In(GenderMale, GenderFemale)),
		validation.Field(&p.Birthdate, validation.Required),
		validation.Field(&p.Height, validation.Min(0.0), validation.Max(300.0)),
		validation.Field(&p.Weight, validation.Min(0.0), validation.Max(500.0)),
		validation.Field(&p.DeviceID, validation.Length(1, 255)),
	)
}

type CompleteProfileMessage struct {
	AccountID  string       `json:"account_id" example:"NU00001" doc:"End-user display id"`
	Profile    ProfileInput `json:"profile"`
	OnResponse func(resp *CompleteProfileResponse)
}

func (e CompleteProfileMessage) Type() string { return "registration.complete_profile" }

type CompleteProfileResponse struct {
	User    *EndUser
	Session *SessionTokens
	Device  *Device
}

type CompleteProfileHandler struct {
	handlerBase
	issuer SessionIssuer
}

func NewCompleteProfileHandler(repo RepositoryManager, issuer SessionIssuer, opts ...HandlerOption) *CompleteProfileHandler {
	return &CompleteProfileHandler{
		handlerBase: newHandlerBase("identity.profile", repo, opts),
		issuer:      issuer,
	}
}

func (h *CompleteProfileHandler) Execute(ctx context.Context, event CompleteProfileMessage) error {
	ctx, cancel, err := h.guard(ctx, "profile completion")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowProfileCompletion, err)
	return err
}

func (h *CompleteProfileHandler) execute(ctx context.Context, event CompleteProfileMessage) error {
	if err := event.Profile.Validate(); err != nil {
		return invalidProfile(err)
	}

	var passwordHash string
	if event.Profile.Password != "" {
		hash, err := HashPassword(event.Profile.Password)
		if err != nil {
			return asRichError(err, "failed to hash password")
		}
		passwordHash = hash
	}

	var (
		user   *EndUser
		device *Device
		from   RegistrationState
		to     RegistrationState
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			return notFoundAs(err, ErrAccountNotFound)
		}

		from = RegistrationStateOf(nil, user)
		if _, err = NextRegistrationState(from, EventCompleteProfile); err != nil {
			return err
		}

		birthdate := event.Profile.Birthdate.UTC()
		user.Gender = event.Profile.Gender
		user.Birthdate = &birthdate
		user.Height = event.Profile.Height
		user.Weight = event.Profile.Weight
		user.EmailVerified = true
		if passwordHash != "" {
			user.PasswordHash = passwordHash
		}

		if err := h.repo.Users().UpdateProfileTx(ctx, tx, user); err != nil {
			return err
		}
		// without a password the account stays provisional
		to = RegistrationStateOf(nil, user)

		if event.Profile.DeviceID != "" {
			if device, err = h.repo.Devices().UpsertTx(ctx, tx, event.Profile.DeviceID, user.ID, h.now()); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return asRichError(err, "failed to complete profile")
	}

	if from == StateActive {
		h.logger.Info("profile re-completed for an active account", "user_id", user.ID)
	}

	session, err := h.issuer.Issue(ctx, user, false)
	if err != nil {
		return asRichError(err, "failed to issue session")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistrationTransition,
		Actor:     subjectActor(user.Ref()),
		Subject:   user.Ref(),
		FromState: from,
		ToState:   to,
		Metadata: map[string]any{
			"event":       EventCompleteProfile,
			"with_device": device != nil,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&CompleteProfileResponse{
			User:    user,
			Session: session,
			Device:  device,
		})
	}

	return nil
}
