package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	identity "github.com/nas-health/go-identity"
)

type detail struct {
	Detail string `json:"detail"`
}

func (s *Server) preRegister(c router.Context) error {
	payload := new(EmailRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	if _, err := s.svc.RequestPreRegistration(c.Context(), payload.Email); err != nil {
		return err
	}

	return c.JSON(fiber.StatusCreated, detail{Detail: "verification email sent"})
}

func (s *Server) verifyEmail(c router.Context) error {
	payload := new(TokenRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	resp, err := s.svc.ConsumeRegistrationToken(c.Context(), payload.Token)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, fiber.Map{
		"user":     resp.User,
		"session":  resp.Session,
		"created":  resp.Created,
		"replayed": resp.Replayed,
	})
}

func (s *Server) completeRegistration(c router.Context) error {
	claims, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if claims.Kind != identity.KindEndUser {
		return ErrForbiddenKind
	}

	payload := new(CompleteRegistrationRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	resp, err := s.svc.CompleteProfile(c.Context(), claims.Owner().ID, payload.Profile())
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, fiber.Map{
		"user":    resp.User,
		"session": resp.Session,
	})
}

func (s *Server) login(c router.Context) error {
	payload := new(LoginRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	resp, err := s.svc.Authenticate(c.Context(), identity.AccountKind(payload.Kind), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, fiber.Map{
		"account": resp.Account,
		"session": resp.Session,
	})
}

func (s *Server) logout(c router.Context) error {
	claims, err := sessionFrom(c)
	if err != nil {
		return err
	}

	if err := s.svc.Logout(c.Context(), claims.Owner()); err != nil {
		return err
	}

	return c.NoContent(fiber.StatusNoContent)
}

func (s *Server) passwordChange(c router.Context) error {
	claims, err := sessionFrom(c)
	if err != nil {
		return err
	}

	payload := new(PasswordChangeRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.svc.ChangePassword(c.Context(), claims.Owner(), payload.OldPassword, payload.NewPassword); err != nil {
		return err
	}

	return c.JSON(router.StatusOK, detail{Detail: "password changed"})
}

func (s *Server) passwordReset(c router.Context) error {
	payload := new(PasswordResetRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.svc.RequestPasswordReset(c.Context(), identity.AccountKind(payload.Kind), payload.Email); err != nil {
		return err
	}

	return c.JSON(router.StatusOK, detail{Detail: "if the account exists a reset email was sent"})
}

func (s *Server) passwordResetConfirm(c router.Context) error {
	payload := new(PasswordResetConfirmRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.svc.ResetPassword(c.Context(), payload.UID, payload.Token, payload.NewPassword); err != nil {
		return err
	}

	return c.JSON(router.StatusOK, detail{Detail: "password has been reset"})
}

func (s *Server) passwordResetTokenVerify(c router.Context) error {
	payload := new(ResetTokenVerifyRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	resp, err := s.svc.VerifyResetToken(c.Context(), payload.UID, payload.Token)
	if err != nil {
		return err
	}

	if !resp.Valid {
		return identity.ErrLinkExpired
	}

	return c.JSON(router.StatusOK, resp)
}

func (s *Server) passwordResetByUserID(c router.Context) error {
	payload := new(PasswordResetByIDRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	err := s.svc.ResetPasswordByAccountID(c.Context(), identity.ResetPasswordByIDMessage{
		AccountID:   payload.UserID,
		UID:         payload.UID,
		Token:       payload.Token,
		NewPassword: payload.NewPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, detail{Detail: "password has been reset"})
}

func (s *Server) emailChange(c router.Context) error {
	claims, err := sessionFrom(c)
	if err != nil {
		return err
	}

	payload := new(EmailChangeRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	pending, err := s.svc.RequestEmailChange(c.Context(), claims.Owner(), payload.NewEmail)
	if err != nil {
		return err
	}

	return c.JSON(fiber.StatusAccepted, fiber.Map{"new_email": pending.NewEmail})
}

func (s *Server) emailChangeResend(c router.Context) error {
	payload := new(EmailChangeRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	pending, err := s.svc.ResendEmailChange(c.Context(), payload.NewEmail)
	if err != nil {
		return err
	}

	return c.JSON(fiber.StatusAccepted, fiber.Map{"new_email": pending.NewEmail})
}

func (s *Server) emailChangeConfirm(c router.Context) error {
	payload := new(TokenRequest)
	if err := bind(c, payload); err != nil {
		return err
	}

	account, err := s.svc.VerifyEmailChange(c.Context(), payload.Token)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, fiber.Map{"account": account})
}
