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

// VerificationTokens is the token ledger.
type VerificationTokens interface {
	repository.Repository[*VerificationToken]

	// IssueTx replaces any token of typ held by owner with a fresh one.
	IssueTx(ctx context.Context, tx bun.IDB, owner OwnerRef, typ TokenType, ttl time.Duration, now time.Time) (*VerificationToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) (*VerificationToken, error)
	DeleteForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef, types ...TokenType) error
	ListForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef, typ TokenType) ([]*VerificationToken, error)
	DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error)
}

type verificationTokens struct {
	repository.Repository[*VerificationToken]
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	handlers := repository.ModelHandlers[*VerificationToken]{
		NewRecord: func() *VerificationToken {
			return &VerificationToken{}
		},
		GetID: func(record *VerificationToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *VerificationToken, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}
	return &verificationTokens{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *verificationTokens) IssueTx(ctx context.Context, tx bun.IDB, owner OwnerRef, typ TokenType, ttl time.Duration, now time.Time) (*VerificationToken, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	if err := r.DeleteForOwnerTx(ctx, tx, owner, typ); err != nil {
		return nil, err
	}

	record := &VerificationToken{
		ID:        uuid.New(),
		Token:     uuid.NewString(),
		TokenType: typ,
		ExpiresAt: now.Add(ttl),
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		CreatedAt: now,
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *verificationTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.token_type = ?", typ).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, recordNotFound(err, map[string]any{"token_type": typ})
	}
	return record, nil
}

func (r *verificationTokens) DeleteForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef, types ...TokenType) error {
	q := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("owner_kind = ?", owner.Kind).
		Where("owner_id = ?", owner.ID)
	if len(types) > 0 {
		q = q.Where("token_type IN (?)", bun.In(types))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *verificationTokens) ListForOwnerTx(ctx context.Context, tx bun.IDB, owner OwnerRef, typ TokenType) ([]*VerificationToken, error) {
	var records []*VerificationToken
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_kind = ?", owner.Kind).
		Where("?TableAlias.owner_id = ?", owner.ID).
		Where("?TableAlias.token_type = ?", typ).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

func (r *verificationTokens) DeleteExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int, error) {
	res, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
