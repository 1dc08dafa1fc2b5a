package httpapi

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	identity "github.com/nas-health/go-identity"
)

const (
	TextCodeInvalidPayload = "INVALID_PAYLOAD"
	TextCodeUnauthorized   = "UNAUTHORIZED"
	TextCodeNotFound       = "NOT_FOUND"
	TextCodeInternal       = "INTERNAL"
)

// ErrMissingBearer is returned when a protected route has no bearer token.
var ErrMissingBearer = goerrors.New("missing bearer token", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbiddenKind is returned when the session belongs to the wrong kind of account.
var ErrForbiddenKind = goerrors.New("operation not allowed for this account", goerrors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

func invalidPayload(err error) error {
	meta := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		meta["fields"] = verrs
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request payload").
		WithTextCode(TextCodeInvalidPayload).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Fields any    `json:"fields,omitempty"`
}

func statusFor(richErr *goerrors.Error) int {
	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := TextCodeInternal
		if fiberErr.Code == fiber.StatusNotFound {
			kind = TextCodeNotFound
		}
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message, Kind: kind})
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
	}

	status := statusFor(richErr)
	kind := identity.ErrorKind(richErr)
	if kind == "" {
		kind = TextCodeInternal
	}

	resp := ErrorResponse{Error: richErr.Message, Kind: kind}
	if fields, ok := richErr.Metadata["fields"]; ok {
		resp.Fields = fields
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		resp.Error = "an unexpected server error occurred"
	} else {
		s.logger.Debug("request rejected", "path", c.Path(), "kind", kind)
	}

	return c.Status(status).JSON(resp)
}
