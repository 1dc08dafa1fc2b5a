package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PreRegistrations stores email-only registrations.
type PreRegistrations interface {
	repository.Repository[*PreRegistration]

	FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*PreRegistration, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PreRegistration, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	// DeleteByEmailTx removes the pre-registration for email and the tokens it owns.
	DeleteByEmailTx(ctx context.Context, tx bun.IDB, email string) (int, error)
	// DeleteExpiredTx removes pre-registrations whose expiry passed before now.
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error)
}

type preRegistrations struct {
	repository.Repository[*PreRegistration]
	db *bun.DB
}

var _ PreRegistrations = (*preRegistrations)(nil)

func NewPreRegistrationsRepository(db *bun.DB) PreRegistrations {
	handlers := repository.ModelHandlers[*PreRegistration]{
		NewRecord: func() *PreRegistration {
			return &PreRegistration{}
		},
		GetID: func(record *PreRegistration) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PreRegistration, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return &preRegistrations{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *preRegistrations) FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*PreRegistration, error) {
	record := &PreRegistration{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, recordNotFound(err, map[string]any{"id": id})
	}
	return record, nil
}

func (r *preRegistrations) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*PreRegistration, error) {
	record := &PreRegistration{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, recordNotFound(err, map[string]any{"email": email})
	}
	return record, nil
}

func (r *preRegistrations) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*PreRegistration)(nil)).
		Set("is_used = ?", true).
		Where("id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id.String()})
}

func (r *preRegistrations) DeleteByEmailTx(ctx context.Context, tx bun.IDB, email string) (int, error) {
	return r.deleteWhereTx(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", NormalizeEmail(email))
	})
}

func (r *preRegistrations) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error) {
	return r.deleteWhereTx(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("expires_at <= ?", now)
	})
}

func (r *preRegistrations) deleteWhereTx(ctx context.Context, tx bun.IDB, filter func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
	var ids []string
	err := filter(tx.NewSelect().Model((*PreRegistration)(nil)).Column("id")).Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("owner_kind = ?", KindPreRegistration).
		Where("owner_id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return 0, err
	}

	if _, err := tx.NewDelete().
		Model((*PreRegistration)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return 0, err
	}

	return len(ids), nil
}
