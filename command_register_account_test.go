package accounts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/userkit/go-accounts"
)

func TestRegisterAccountFirstAccountBecomesSuperAdmin(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	publisher := &MockPublisher{}

	created := &accounts.Account{
		ID:    uuid.New(),
		Email: "first@example.com",
		Role:  accounts.RoleSuperAdmin,
	}
	created.SetVerificationToken("verify-token", testNow.Add(accounts.VerificationTokenTTL))

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "first@example.com").
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("CountTx", mock.Anything, mock.Anything).
		Return(0, nil).Once()
	repo.AccountsRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *accounts.Account) bool {
		return a.Role == accounts.RoleSuperAdmin &&
			a.VerificationToken != "" &&
			a.VerificationTokenExpiresAt != nil
	})).Return(created, nil).Once()

	var resp *accounts.RegisterAccountResponse
	handler := accounts.NewRegisterAccountHandler(repo, publisher)
	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "first@example.com",
		Password: "password12345",
		OnResponse: func(r *accounts.RegisterAccountResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, accounts.RoleSuperAdmin, resp.Account.Role)

	evt, ok := publisher.Last().(accounts.AccountRegisteredEvent)
	require.True(t, ok)
	require.Equal(t, created.ID, evt.AccountID)
	require.Equal(t, "verify-token", evt.VerificationToken)

	repo.AssertExpectations(t)
}

func TestRegisterAccountLaterAccountsGetUserRole(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	publisher := &MockPublisher{}

	created := &accounts.Account{
		ID:    uuid.New(),
		Email: "second@example.com",
		Role:  accounts.RoleUser,
	}

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "second@example.com").
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("CountTx", mock.Anything, mock.Anything).
		Return(3, nil).Once()
	repo.AccountsRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *accounts.Account) bool {
		return a.Role == accounts.RoleUser
	})).Return(created, nil).Once()

	handler := accounts.NewRegisterAccountHandler(repo, publisher)
	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "second@example.com",
		Password: "password12345",
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRegisterAccountDuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	publisher := &MockPublisher{}

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "taken@example.com").
		Return(&accounts.Account{Email: "taken@example.com"}, nil).Once()

	handler := accounts.NewRegisterAccountHandler(repo, publisher)
	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "taken@example.com",
		Password: "password12345",
	})

	require.ErrorIs(t, err, accounts.ErrEmailTaken)
	require.Empty(t, publisher.Events)
	repo.AssertExpectations(t)
}

func TestRegisterAccountUniqueIndexRaceConflicts(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	publisher := &MockPublisher{}

	repo.AccountsRepo.On("GetByEmailTx", mock.Anything, mock.Anything, "race@example.com").
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("CountTx", mock.Anything, mock.Anything).
		Return(1, nil).Once()
	repo.AccountsRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("UNIQUE constraint failed: accounts.email")).Once()

	handler := accounts.NewRegisterAccountHandler(repo, publisher)
	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "race@example.com",
		Password: "password12345",
	})

	require.ErrorIs(t, err, accounts.ErrEmailTaken)
	require.Empty(t, publisher.Events)
	repo.AssertExpectations(t)
}

func TestRegisterAccountCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := accounts.NewRegisterAccountHandler(newMockRepo(), &MockPublisher{})
	err := handler.Execute(ctx, accounts.RegisterAccountMessage{
		Email:    "late@example.com",
		Password: "password12345",
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "context cancelled")
}
