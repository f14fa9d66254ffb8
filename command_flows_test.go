package accounts_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/userkit/go-accounts"
)

// Walks an account from registration through verification and login to the
// authenticated account lookup, with the stores mutated the way the real
// repositories would.
func TestAccountLifecycleRegisterVerifyLoginMe(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	publisher := &MockPublisher{}
	tokens := newTestTokenService()

	stored := &accounts.Account{}

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "flow@example.com").
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("CountTx", mock.Anything, mock.Anything).
		Return(0, nil).Once()
	repo.AccountsRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			record := args.Get(2).(*accounts.Account)
			*stored = *record
			if stored.ID == uuid.Nil {
				stored.ID = uuid.New()
			}
		}).
		Return(stored, nil).Once()

	register := accounts.NewRegisterAccountHandler(repo, publisher)
	err := register.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "flow@example.com",
		Password: "password12345",
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.VerificationToken)
	require.Equal(t, accounts.RoleSuperAdmin, stored.Role)
	require.False(t, stored.EmailVerified)

	verificationToken := stored.VerificationToken

	repo.AccountsRepo.On("GetByVerificationToken", mock.Anything, verificationToken).
		Return(stored, nil).Once()
	repo.AccountsRepo.On("MarkVerifiedTx", mock.Anything, mock.Anything, stored.ID).
		Run(func(mock.Arguments) {
			stored.Verify()
		}).
		Return(nil).Once()

	verify := accounts.NewVerifyEmailHandler(repo)
	err = verify.Execute(ctx, accounts.VerifyEmailMessage{Token: verificationToken})
	require.NoError(t, err)
	require.True(t, stored.EmailVerified)
	require.Empty(t, stored.VerificationToken)

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "flow@example.com").
		Return(stored, nil).Once()
	repo.AccountsRepo.On("StoreRefreshTokenTx", mock.Anything, mock.Anything, stored.ID, mock.Anything, mock.Anything).
		Return(nil).Once()

	var session *accounts.LoginResponse
	login := accounts.NewLoginHandler(repo, tokens)
	err = login.Execute(ctx, accounts.LoginMessage{
		Email:    "flow@example.com",
		Password: "password12345",
		OnResponse: func(r *accounts.LoginResponse) {
			session = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)

	claims, err := tokens.Validate(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, stored.ID.String(), claims.UserID())

	repo.AccountsRepo.On("GetByID", mock.Anything, stored.ID.String()).
		Return(stored, nil).Once()

	var me *accounts.GetAccountResponse
	getAccount := accounts.NewGetAccountHandler(repo)
	err = getAccount.Execute(ctx, accounts.GetAccountMessage{
		AccountID: stored.ID,
		OnResponse: func(r *accounts.GetAccountResponse) {
			me = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, me)
	require.Equal(t, "flow@example.com", me.Account.Email)
	require.True(t, me.Account.EmailVerified)

	repo.AssertExpectations(t)
}
