package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// AccountStore is the credential surface shared by every account variant.
type AccountStore interface {
	Kind() AccountKind
	FindTx(ctx context.Context, tx bun.IDB, id string) (CredentialHolder, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (CredentialHolder, error)
	EmailTakenTx(ctx context.Context, tx bun.IDB, email, exceptID string) (bool, error)
	SetEmailTx(ctx context.Context, tx bun.IDB, id, email string) error
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error
	TouchLastLoginTx(ctx context.Context, tx bun.IDB, id string, at time.Time) error
	DeleteTx(ctx context.Context, tx bun.IDB, ids ...string) error
}

// Users stores end-user accounts.
type Users interface {
	AccountStore

	GetByID(ctx context.Context, id string) (*EndUser, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*EndUser, error)
	GetByEmail(ctx context.Context, email string) (*EndUser, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*EndUser, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *EndUser) (*EndUser, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, record *EndUser) error
	DeleteStaleByEmailTx(ctx context.Context, tx bun.IDB, email string) (int, error)
	ListStaleTx(ctx context.Context, tx bun.IDB, joinedBefore time.Time) ([]*EndUser, error)
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) Kind() AccountKind {
	return KindEndUser
}

func (a *users) GetByID(ctx context.Context, id string) (*EndUser, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*EndUser, error) {
	record := &EndUser{}
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

func (a *users) GetByEmail(ctx context.Context, email string) (*EndUser, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*EndUser, error) {
	record := &EndUser{}
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

func (a *users) FindTx(ctx context.Context, tx bun.IDB, id string) (CredentialHolder, error) {
	record, err := a.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (CredentialHolder, error) {
	record, err := a.GetByEmailTx(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreateTx assigns the next NU display id and inserts record.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *EndUser) (*EndUser, error) {
	id, err := nextDisplayID(ctx, tx, (*EndUser)(nil), KindEndUser.DisplayPrefix())
	if err != nil {
		return nil, err
	}

	record.ID = id
	record.Email = NormalizeEmail(record.Email)
	if record.DateJoined.IsZero() {
		record.DateJoined = utcNow()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, record *EndUser) error {
	res, err := tx.NewUpdate().
		Model(record).
		Column("gender", "birthdate", "height", "weight", "password_hash", "email_verified").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": record.ID})
}

func (a *users) EmailTakenTx(ctx context.Context, tx bun.IDB, email, exceptID string) (bool, error) {
	q := tx.NewSelect().
		Model((*EndUser)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email))
	if exceptID != "" {
		q = q.Where("?TableAlias.id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

func (a *users) SetEmailTx(ctx context.Context, tx bun.IDB, id, email string) error {
	res, err := tx.NewUpdate().
		Model((*EndUser)(nil)).
		Set("email = ?", NormalizeEmail(email)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

func (a *users) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*EndUser)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

func (a *users) TouchLastLoginTx(ctx context.Context, tx bun.IDB, id string, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*EndUser)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, map[string]any{"id": id})
}

// DeleteStaleByEmailTx removes unverified non-staff accounts for email that
// never completed their profile, together with everything they own.
func (a *users) DeleteStaleByEmailTx(ctx context.Context, tx bun.IDB, email string) (int, error) {
	var ids []string
	err := tx.NewSelect().
		Model((*EndUser)(nil)).
		Column("id").
		Where("email = ?", NormalizeEmail(email)).
		Where("is_staff = ?", false).
		Where("email_verified = ?", false).
		Where("height = 0").
		Where("weight = 0").
		Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	if err := a.DeleteTx(ctx, tx, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListStaleTx returns provisional accounts that joined before joinedBefore.
func (a *users) ListStaleTx(ctx context.Context, tx bun.IDB, joinedBefore time.Time) ([]*EndUser, error) {
	var records []*EndUser
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.is_staff = ?", false).
		Where("?TableAlias.email_verified = ?", false).
		Where("?TableAlias.height = 0").
		Where("?TableAlias.weight = 0").
		Where("?TableAlias.date_joined < ?", joinedBefore).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := tx.NewDelete().
		Model((*Device)(nil)).
		Where("user_id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return err
	}

	if err := deleteOwnedTx(ctx, tx, KindEndUser, ids); err != nil {
		return err
	}

	_, err := tx.NewDelete().
		Model((*EndUser)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// deleteOwnedTx removes tokens and pending email changes owned by ids.
func deleteOwnedTx(ctx context.Context, tx bun.IDB, kind AccountKind, ids []string) error {
	if _, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("owner_kind = ?", kind).
		Where("owner_id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return err
	}

	_, err := tx.NewDelete().
		Model((*PendingEmailChange)(nil)).
		Where("owner_kind = ?", kind).
		Where("owner_id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// nextDisplayID reads the highest id for prefix and returns its successor.
func nextDisplayID(ctx context.Context, tx bun.IDB, model any, prefix string) (string, error) {
	var ids []string
	err := tx.NewSelect().
		Model(model).
		Column("id").
		Where("id LIKE ?", prefix+"%").
		OrderExpr("LENGTH(id) DESC, id DESC").
		Limit(1).
		Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	last := ""
	if len(ids) > 0 {
		last = ids[0]
	}
	return FormatDisplayID(prefix, last)
}

func recordNotFound(err error, metadata map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return err
}

func expectAffected(res sql.Result, metadata map[string]any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return nil
}
