package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Admins() Admins
	Tokens() VerificationTokens
	PreRegistrations() PreRegistrations
	EmailChanges() EmailChanges
	Devices() Devices
	// Accounts returns the store for an account kind.
	Accounts(kind AccountKind) (AccountStore, error)
	// Account loads the credential holder behind ref.
	Account(ctx context.Context, tx bun.IDB, ref OwnerRef) (CredentialHolder, error)
}

type mngr struct {
	db               *bun.DB
	users            Users
	admins           Admins
	tokens           VerificationTokens
	preRegistrations PreRegistrations
	emailChanges     EmailChanges
	devices          Devices
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:               db,
		users:            NewUsersRepository(db),
		admins:           NewAdminsRepository(db),
		tokens:           NewVerificationTokensRepository(db),
		preRegistrations: NewPreRegistrationsRepository(db),
		emailChanges:     NewEmailChangesRepository(db),
		devices:          NewDevicesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.preRegistrations == nil {
		return errors.New("repository preRegistrations should be initialized")
	}

	if m.emailChanges == nil {
		return errors.New("repository emailChanges should be initialized")
	}

	if m.devices == nil {
		return errors.New("repository devices should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Admins() Admins {
	return m.admins
}

func (m mngr) Tokens() VerificationTokens {
	return m.tokens
}

func (m mngr) PreRegistrations() PreRegistrations {
	return m.preRegistrations
}

func (m mngr) EmailChanges() EmailChanges {
	return m.emailChanges
}

func (m mngr) Devices() Devices {
	return m.devices
}

func (m mngr) Accounts(kind AccountKind) (AccountStore, error) {
	switch kind {
	case KindEndUser:
		return m.users, nil
	case KindAdmin:
		return m.admins, nil
	default:
		return nil, ErrAccountNotFound
	}
}

func (m mngr) Account(ctx context.Context, tx bun.IDB, ref OwnerRef) (CredentialHolder, error) {
	store, err := m.Accounts(ref.Kind)
	if err != nil {
		return nil, err
	}

	if tx == nil {
		tx = m.db
	}

	holder, err := store.FindTx(ctx, tx, ref.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return holder, nil
}
