package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EmailChanges stores staged email address changes.
type EmailChanges interface {
	repository.Repository[*PendingEmailChange]

	FindPendingByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PendingEmailChange, error)
	FindPendingByEmailTx(ctx context.Context, tx bun.IDB, newEmail string) (*PendingEmailChange, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteByEmailTx(ctx context.Context, tx bun.IDB, newEmail string) error
	DeletePendingForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef) error
}

type emailChanges struct {
	repository.Repository[*PendingEmailChange]
	db *bun.DB
}

var _ EmailChanges = (*emailChanges)(nil)

func NewEmailChangesRepository(db *bun.DB) EmailChanges {
	handlers := repository.ModelHandlers[*PendingEmailChange]{
		NewRecord: func() *PendingEmailChange {
			return &PendingEmailChange{}
		},
		GetID: func(record *PendingEmailChange) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PendingEmailChange, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}
	return &emailChanges{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *emailChanges) FindPendingByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PendingEmailChange, error) {
	record := &PendingEmailChange{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.is_verified = ?", false).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, recordNotFound(err, map[string]any{"token": "redacted"})
	}
	return record, nil
}

func (r *emailChanges) FindPendingByEmailTx(ctx context.Context, tx bun.IDB, newEmail string) (*PendingEmailChange, error) {
	record := &PendingEmailChange{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.new_email = ?", NormalizeEmail(newEmail)).
		Where("?TableAlias.is_verified = ?", false).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, recordNotFound(err, map[string]any{"new_email": newEmail})
	}
	return record, nil
}

func (r *emailChanges) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*PendingEmailChange)(nil)).
		Set("is_verified = ?", true).
		Where("id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

// DeleteByEmailTx removes every staged change targeting newEmail, verified
// traces included, so the address can be staged again.
func (r *emailChanges) DeleteByEmailTx(ctx context.Context, tx bun.IDB, newEmail string) error {
	_, err := tx.NewDelete().
		Model((*PendingEmailChange)(nil)).
		Where("new_email = ?", NormalizeEmail(newEmail)).
		Exec(ctx)
	return err
}

func (r *emailChanges) DeletePendingForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef) error {
	_, err := tx.NewDelete().
		Model((*PendingEmailChange)(nil)).
		Where("owner_kind = ?", owner.Kind).
		Where("owner_id = ?", owner.ID).
		Where("is_verified = ?", false).
		Exec(ctx)
	return err
}
