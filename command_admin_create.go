package identity

import (
	"context"

	"github.com/uptrace/bun"
)

type CreateAdminMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Superuser  bool   `json:"is_superuser"`
	OnResponse func(admin *Admin)
}

func (e CreateAdminMessage) Type() string { return "admin.create" }

// CreateAdminHandler provisions back office accounts.
type CreateAdminHandler struct {
	handlerBase
}

func NewCreateAdminHandler(repo RepositoryManager, opts ...HandlerOption) *CreateAdminHandler {
	return &CreateAdminHandler{
		handlerBase: newHandlerBase("identity.admin", repo, opts),
	}
}

func (h *CreateAdminHandler) Execute(ctx context.Context, event CreateAdminMessage) error {
	ctx, cancel, err := h.guard(ctx, "admin creation")
	defer cancel()
	if err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *CreateAdminHandler) execute(ctx context.Context, event CreateAdminMessage) error {
	email, err := ValidateEmail(event.Email)
	if err != nil {
		return err
	}

	if err := ValidatePassword(event.Password); err != nil {
		return err
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	var admin *Admin
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Admins().EmailTakenTx(ctx, tx, email, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailInUse
		}

		admin, err = h.repo.Admins().CreateTx(ctx, tx, &Admin{
			Email:         email,
			PasswordHash:  passwordHash,
			IsActive:      true,
			IsSuperuser:   event.Superuser,
			EmailVerified: true,
			DateJoined:    h.now(),
		})
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return ErrEmailInUse
		}
		return asRichError(err, "failed to create admin")
	}

	h.logger.Info("admin created", "admin_id", admin.ID, "superuser", admin.IsSuperuser)

	if event.OnResponse != nil {
		event.OnResponse(admin)
	}

	return nil
}
