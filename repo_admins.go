package identity

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Admins stores back office accounts.
type Admins interface {
	AccountStore

	GetByID(ctx context.Context, id string) (*Admin, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*Admin, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Admin, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Admin) (*Admin, error)
}

type admins struct {
	db *bun.DB
}

var _ Admins = (*admins)(nil)

func NewAdminsRepository(db *bun.DB) Admins {
	return &admins{db: db}
}

func (a *admins) Kind() AccountKind {
	return KindAdmin
}

func (a *admins) GetByID(ctx context.Context, id string) (*Admin, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *admins) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*Admin, error) {
	record := &Admin{}
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

func (a *admins) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Admin, error) {
	record := &Admin{}
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

func (a *admins) FindTx(ctx context.Context, tx bun.IDB, id string) (CredentialHolder, error) {
	record, err := a.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *admins) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (CredentialHolder, error) {
	record, err := a.GetByEmailTx(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreateTx assigns the next NA display id and inserts record.
func (a *admins) CreateTx(ctx context.Context, tx bun.IDB, record *Admin) (*Admin, error) {
	id, err := nextDisplayID(ctx, tx, (*Admin)(nil), KindAdmin.DisplayPrefix())
	if err != nil {
		return nil, err
	}

	record.ID = id
	record.Email = NormalizeEmail(record.Email)
	record.IsStaff = true
	if record.DateJoined.IsZero() {
		record.DateJoined = utcNow()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *admins) EmailTakenTx(ctx context.Context, tx bun.IDB, email, exceptID string) (bool, error) {
	q := tx.NewSelect().
		Model((*Admin)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email))
	if exceptID != "" {
		q = q.Where("?TableAlias.id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

func (a *admins) SetEmailTx(ctx context.Context, tx bun.IDB, id, email string) error {
	res, err := tx.NewUpdate().
		Model((*Admin)(nil)).
		Set("email = ?", NormalizeEmail(email)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

func (a *admins) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*Admin)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

func (a *admins) TouchLastLoginTx(ctx context.Context, tx bun.IDB, id string, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*Admin)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

func (a *admins) DeleteTx(ctx context.Context, tx bun.IDB, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := deleteOwnedTx(ctx, tx, KindAdmin, ids); err != nil {
		return err
	}

	_, err := tx.NewDelete().
		Model((*Admin)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}
