package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	accounts "github.com/userkit/go-accounts"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// captureLogger renders every call the way a printf backend would, so
// tests can assert on the final log line.
type captureLogger struct {
	lines []string
}

func (l *captureLogger) log(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log(format, args...) }

// MockRepositoryManager hands out the mocked stores and runs transaction
// bodies against a zero bun.Tx, so store expectations see every call.
type MockRepositoryManager struct {
	AccountsRepo *MockAccounts
	ProfilesRepo *MockProfiles
}

func newMockRepo() *MockRepositoryManager {
	return &MockRepositoryManager{
		AccountsRepo: &MockAccounts{},
		ProfilesRepo: &MockProfiles{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() accounts.Accounts { return m.AccountsRepo }
func (m *MockRepositoryManager) Profiles() accounts.Profiles { return m.ProfilesRepo }

func (m *MockRepositoryManager) AssertExpectations(t mock.TestingT) {
	m.AccountsRepo.AssertExpectations(t)
	m.ProfilesRepo.AssertExpectations(t)
}

// MockAccounts implements accounts.Accounts. Methods the handlers never
// touch fall through to the embedded nil interface.
type MockAccounts struct {
	mock.Mock
	accounts.Accounts
}

func (m *MockAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, id)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	args := m.Called(ctx, email)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.Account, error) {
	args := m.Called(ctx, tx, email)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) GetByVerificationToken(ctx context.Context, token string) (*accounts.Account, error) {
	args := m.Called(ctx, token)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) GetByPasswordResetToken(ctx context.Context, token string) (*accounts.Account, error) {
	args := m.Called(ctx, token)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) GetByProfileCreationToken(ctx context.Context, token string) (*accounts.Account, error) {
	args := m.Called(ctx, token)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, record *accounts.Account, criteria ...repository.InsertCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, record)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.Account, criteria ...repository.InsertCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, tx, record)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, record *accounts.Account, criteria ...repository.UpdateCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, tx, record)
	acc, _ := args.Get(0).(*accounts.Account)
	return acc, args.Error(1)
}

func (m *MockAccounts) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockAccounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockAccounts) FinishProfileSetup(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccounts) FinishProfileSetupTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockAccounts) StoreRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return m.Called(ctx, id, token, expiresAt).Error(0)
}

func (m *MockAccounts) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	return m.Called(ctx, tx, id, token, expiresAt).Error(0)
}

func (m *MockAccounts) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccounts) ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockAccounts) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAccounts) CountTx(ctx context.Context, tx bun.IDB) (int, error) {
	args := m.Called(ctx, tx)
	return args.Int(0), args.Error(1)
}

// MockProfiles implements accounts.Profiles.
type MockProfiles struct {
	mock.Mock
	accounts.Profiles
}

func (m *MockProfiles) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.Profile, error) {
	args := m.Called(ctx, id)
	prf, _ := args.Get(0).(*accounts.Profile)
	return prf, args.Error(1)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.Profile, criteria ...repository.InsertCriteria) (*accounts.Profile, error) {
	args := m.Called(ctx, tx, record)
	prf, _ := args.Get(0).(*accounts.Profile)
	return prf, args.Error(1)
}

func (m *MockProfiles) UpdateTx(ctx context.Context, tx bun.IDB, record *accounts.Profile, criteria ...repository.UpdateCriteria) (*accounts.Profile, error) {
	args := m.Called(ctx, tx, record)
	prf, _ := args.Get(0).(*accounts.Profile)
	return prf, args.Error(1)
}

func (m *MockProfiles) List(ctx context.Context) ([]*accounts.Profile, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*accounts.Profile)
	return list, args.Error(1)
}

// MockPublisher records events for assertions.
type MockPublisher struct {
	Events []accounts.Event
}

func (m *MockPublisher) Publish(ctx context.Context, event accounts.Event) {
	m.Events = append(m.Events, event)
}

func (m *MockPublisher) Last() accounts.Event {
	if len(m.Events) == 0 {
		return nil
	}
	return m.Events[len(m.Events)-1]
}

// MockMailer implements accounts.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockMailer) SendProfileCreationEmail(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

// MockImageStore implements accounts.ImageStore.
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Upload(ctx context.Context, ownerID uuid.UUID, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, ownerID, contentType, body, size)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// MockTokenService implements accounts.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) GenerateAccessToken(account *accounts.Account) (string, error) {
	args := m.Called(account)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) GenerateRefreshToken(account *accounts.Account, refreshID string) (string, time.Time, error) {
	args := m.Called(account, refreshID)
	expiresAt, _ := args.Get(1).(time.Time)
	return args.String(0), expiresAt, args.Error(2)
}

func (m *MockTokenService) Validate(tokenString string) (accounts.AuthClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(accounts.AuthClaims)
	return claims, args.Error(1)
}

func (m *MockTokenService) ValidateRefresh(tokenString string) (accounts.AuthClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(accounts.AuthClaims)
	return claims, args.Error(1)
}

func notFound() error {
	return repository.NewRecordNotFound()
}

// testNow anchors expiry assertions to a fixed instant.
var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }
