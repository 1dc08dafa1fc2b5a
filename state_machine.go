package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_REGISTRATION_TRANSITION"

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = goerrors.New("invalid registration state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// RegistrationState is the position of an email address in the sign up lifecycle.
type RegistrationState string

const (
	StateNone          RegistrationState = "NONE"
	StatePreRegistered RegistrationState = "PRE_REGISTERED"
	StateProvisional   RegistrationState = "PROVISIONAL"
	StateActive        RegistrationState = "ACTIVE"
)

// RegistrationEvent drives registration transitions.
type RegistrationEvent string

const (
	EventRequestPreRegistration   RegistrationEvent = "request_pre_registration"
	EventConsumeRegistrationToken RegistrationEvent = "consume_registration_token"
	EventCompleteProfile          RegistrationEvent = "complete_profile"
)

type registrationTransition struct {
	to RegistrationState
	// refusal, when set, is returned instead of applying the transition.
	refusal error
}

var registrationTransitions = map[RegistrationState]map[RegistrationEvent]registrationTransition{
	StateNone: {
		EventRequestPreRegistration: {to: StatePreRegistered},
	},
	StatePreRegistered: {
		EventRequestPreRegistration:   {to: StatePreRegistered},
		EventConsumeRegistrationToken: {to: StateProvisional},
	},
	StateProvisional: {
		EventRequestPreRegistration:   {to: StatePreRegistered},
		EventConsumeRegistrationToken: {to: StateProvisional},
		EventCompleteProfile:          {to: StateActive},
	},
	StateActive: {
		EventRequestPreRegistration:   {to: StateActive, refusal: ErrAlreadyRegistered},
		EventConsumeRegistrationToken: {to: StateActive, refusal: ErrUserAlreadyActive},
		EventCompleteProfile:          {to: StateActive},
	},
}

// RegistrationStateOf derives the registration state from the stored rows.
// An account counts as active once its email is verified and it holds a
// usable password.
func RegistrationStateOf(pre *PreRegistration, user *EndUser) RegistrationState {
	switch {
	case user != nil && user.EmailVerified && HasUsablePassword(user.PasswordHash):
		return StateActive
	case user != nil:
		return StateProvisional
	case pre != nil:
		return StatePreRegistered
	default:
		return StateNone
	}
}

// NextRegistrationState returns the state event leads to from from, or the
// error the transition table associates with it.
func NextRegistrationState(from RegistrationState, event RegistrationEvent) (RegistrationState, error) {
	events, ok := registrationTransitions[from]
	if !ok {
		return from, invalidTransition(from, event)
	}

	transition, ok := events[event]
	if !ok {
		return from, invalidTransition(from, event)
	}

	if transition.refusal != nil {
		return from, transition.refusal
	}

	return transition.to, nil
}

func invalidTransition(from RegistrationState, event RegistrationEvent) error {
	return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
		"from":  from,
		"event": event,
	})
}
