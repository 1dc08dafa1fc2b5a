package identity_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	identity "github.com/nas-health/go-identity"
	"github.com/nas-health/go-identity/persistence"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Trace(string, ...any) {}
func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
func (testLogger) Fatal(string, ...any) {}
func (testLogger) WithContext(context.Context) identity.Logger {
	return testLogger{}
}

// MockNotifier implements identity.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n identity.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// Sent returns the notifications passed to Send, in order.
func (m *MockNotifier) Sent() []identity.Notification {
	var out []identity.Notification
	for _, call := range m.Calls {
		if call.Method == "Send" {
			out = append(out, call.Arguments.Get(1).(identity.Notification))
		}
	}
	return out
}

func (m *MockNotifier) Last(t *testing.T) identity.Notification {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent, "no notification sent")
	return sent[len(sent)-1]
}

func newMockNotifier() *MockNotifier {
	n := &MockNotifier{}
	n.On("Send", mock.Anything, mock.Anything).Return(nil)
	return n
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockActivitySink) Events(eventType identity.ActivityEventType) []identity.ActivityEvent {
	var out []identity.ActivityEvent
	for _, call := range m.Calls {
		if call.Method != "Record" {
			continue
		}
		event := call.Arguments.Get(1).(identity.ActivityEvent)
		if eventType == "" || event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newMockActivitySink() *MockActivitySink {
	s := &MockActivitySink{}
	s.On("Record", mock.Anything, mock.Anything).Return(nil)
	return s
}

// MockSessionIssuer implements identity.SessionIssuer
type MockSessionIssuer struct {
	mock.Mock
}

func (m *MockSessionIssuer) Issue(ctx context.Context, holder identity.CredentialHolder, temporary bool) (*identity.SessionTokens, error) {
	args := m.Called(ctx, holder, temporary)
	tokens, _ := args.Get(0).(*identity.SessionTokens)
	return tokens, args.Error(1)
}

// MockAuditNotifier implements identity.AuditNotifier
type MockAuditNotifier struct {
	mock.Mock
}

func (m *MockAuditNotifier) SessionStarted(ctx context.Context, ref identity.OwnerRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockAuditNotifier) SessionEnded(ctx context.Context, ref identity.OwnerRef) error {
	return m.Called(ctx, ref).Error(0)
}

type testConfig struct {
	trustVerified bool
}

func (testConfig) GetSigningKey() string             { return "test-signing-key" }
func (testConfig) GetIssuer() string                 { return "nas-identity-test" }
func (testConfig) GetAccessTokenTTL() time.Duration  { return 5 * time.Minute }
func (testConfig) GetRefreshTokenTTL() time.Duration { return 24 * time.Hour }
func (testConfig) GetResetTokenTTL() time.Duration   { return 72 * time.Hour }
func (testConfig) GetLinkBaseURL() string            { return "https://app.example.com" }
func (c testConfig) GetTrustVerifiedResetByID() bool { return c.trustVerified }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, persistence.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db))
	return db
}

type testEnv struct {
	db       *bun.DB
	repo     identity.RepositoryManager
	svc      *identity.Service
	clock    *testClock
	notifier *MockNotifier
	sink     *MockActivitySink
}

func newTestEnv(t *testing.T, cfg testConfig, opts ...identity.ServiceOption) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, cfg, nil, opts...)
}

// newTestEnvWithRepo lets wrap replace the repository manager handed to the
// service.
func newTestEnvWithRepo(t *testing.T, cfg testConfig, wrap func(identity.RepositoryManager) identity.RepositoryManager, opts ...identity.ServiceOption) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       newTestDB(t),
		clock:    newTestClock(),
		notifier: newMockNotifier(),
		sink:     newMockActivitySink(),
	}
	env.repo = identity.NewRepositoryManager(env.db)
	if wrap != nil {
		env.repo = wrap(env.repo)
	}

	base := []identity.ServiceOption{
		identity.WithServiceClock(env.clock.Now),
		identity.WithServiceLogger(testLogger{}),
		identity.WithHandlerOptions(
			identity.WithNotifier(env.notifier),
			identity.WithActivitySink(env.sink),
		),
	}

	svc, err := identity.NewService(cfg, env.repo, nil, append(base, opts...)...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

// registerProvisional drives an email through pre-registration and token
// consumption.
func (e *testEnv) registerProvisional(t *testing.T, email string) *identity.RegistrationVerifyResponse {
	t.Helper()
	ctx := context.Background()

	token, err := e.svc.RequestPreRegistration(ctx, email)
	require.NoError(t, err)

	resp, err := e.svc.ConsumeRegistrationToken(ctx, token)
	require.NoError(t, err)
	return resp
}

// registerActive additionally completes the profile with password.
func (e *testEnv) registerActive(t *testing.T, email, password string) *identity.EndUser {
	t.Helper()
	resp := e.registerProvisional(t, email)

	done, err := e.svc.CompleteProfile(context.Background(), resp.User.ID, identity.ProfileInput{
		Password:  password,
		Gender:    identity.GenderMale,
		Birthdate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Height:    172,
		Weight:    64,
	})
	require.NoError(t, err)
	return done.User
}

func (e *testEnv) user(t *testing.T, id string) *identity.EndUser {
	t.Helper()
	u, err := e.repo.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func countRows(t *testing.T, db bun.IDB, table, where string, args ...any) int {
	t.Helper()
	q := db.NewSelect().Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	return n
}

// MockUsers wraps a real Users repository. CreateTx asks the mock first and
// only reaches the database when the expectation returns no error.
type MockUsers struct {
	identity.Users
	mock.Mock
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.EndUser) (*identity.EndUser, error) {
	if err := m.Called(ctx, record).Error(0); err != nil {
		return nil, err
	}
	return m.Users.CreateTx(ctx, tx, record)
}

// MockPreRegistrations wraps a real PreRegistrations repository the same way.
type MockPreRegistrations struct {
	identity.PreRegistrations
	mock.Mock
}

func (m *MockPreRegistrations) CreateTx(ctx context.Context, tx bun.IDB, record *identity.PreRegistration, criteria ...repository.InsertCriteria) (*identity.PreRegistration, error) {
	if err := m.Called(ctx, record).Error(0); err != nil {
		return nil, err
	}
	return m.PreRegistrations.CreateTx(ctx, tx, record, criteria...)
}

// MockRepositoryManager serves the mocked repositories on top of a real
// manager. OnFailedTx hooks run, one per failed transaction, after the
// transaction has rolled back.
type MockRepositoryManager struct {
	identity.RepositoryManager
	users            *MockUsers
	preRegistrations *MockPreRegistrations

	mu         sync.Mutex
	onFailedTx []func(ctx context.Context)
}

func newMockRepositoryManager(inner identity.RepositoryManager) *MockRepositoryManager {
	return &MockRepositoryManager{
		RepositoryManager: inner,
		users:             &MockUsers{Users: inner.Users()},
		preRegistrations:  &MockPreRegistrations{PreRegistrations: inner.PreRegistrations()},
	}
}

func (m *MockRepositoryManager) Users() identity.Users {
	return m.users
}

func (m *MockRepositoryManager) PreRegistrations() identity.PreRegistrations {
	return m.preRegistrations
}

func (m *MockRepositoryManager) OnFailedTx(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailedTx = append(m.onFailedTx, hook)
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	err := m.RepositoryManager.RunInTx(ctx, opts, f)
	if err == nil {
		return nil
	}

	m.mu.Lock()
	var hook func(ctx context.Context)
	if len(m.onFailedTx) > 0 {
		hook, m.onFailedTx = m.onFailedTx[0], m.onFailedTx[1:]
	}
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return err
}
