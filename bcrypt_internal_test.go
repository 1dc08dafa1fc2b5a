package identity

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nas-health/go-identity/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countHashComparisons(t *testing.T) *int {
	t.Helper()
	calls := 0
	orig := compareHash
	compareHash = func(hash, password []byte) error {
		calls++
		return orig(hash, password)
	}
	t.Cleanup(func() { compareHash = orig })
	return &calls
}

func TestCompareDummyPasswordAlwaysFails(t *testing.T) {
	calls := countHashComparisons(t)

	err := CompareDummyPassword("anything-at-all")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, *calls)

	err = ComparePasswordAndHash("anything-at-all", UnusablePasswordPrefix+"locked")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 2, *calls)
}

func TestLoginUnknownEmailComparesPassword(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, persistence.Migrate(ctx, db))

	calls := countHashComparisons(t)
	h := NewSessionHandler(NewRepositoryManager(db), nil, nil)

	err = h.Login(ctx, LoginMessage{Kind: KindEndUser, Email: "ghost@x.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, TextCodeInvalidCredentials, ErrorKind(err))
	assert.Equal(t, 1, *calls)
}
