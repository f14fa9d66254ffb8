package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/userkit/go-accounts"
)

func refreshClaims(accountID uuid.UUID, refreshID string) *accounts.JWTClaims {
	return &accounts.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: accountID.String(),
		},
		UID:       accountID.String(),
		Use:       accounts.TokenUseRefresh,
		RefreshID: refreshID,
	}
}

func TestRefreshSessionMintsAccessToken(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	tokens := &MockTokenService{}

	account := &accounts.Account{ID: uuid.New(), Email: "user@example.com", EmailVerified: true}
	account.SetRefreshToken("session-id", testNow.Add(time.Hour))

	tokens.On("ValidateRefresh", "refresh.jwt").
		Return(refreshClaims(account.ID, "session-id"), nil).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(account, nil).Once()
	tokens.On("GenerateAccessToken", account).
		Return("fresh-access.jwt", nil).Once()

	var resp *accounts.RefreshSessionResponse
	handler := accounts.NewRefreshSessionHandler(repo, tokens).WithClock(fixedClock)
	err := handler.Execute(ctx, accounts.RefreshSessionMessage{
		RefreshToken: "refresh.jwt",
		OnResponse: func(r *accounts.RefreshSessionResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, "fresh-access.jwt", resp.AccessToken)

	repo.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestRefreshSessionMismatchedIdentifierIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	tokens := &MockTokenService{}

	account := &accounts.Account{ID: uuid.New()}
	account.SetRefreshToken("current-session", testNow.Add(time.Hour))

	tokens.On("ValidateRefresh", "stale.jwt").
		Return(refreshClaims(account.ID, "old-session"), nil).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(account, nil).Once()

	handler := accounts.NewRefreshSessionHandler(repo, tokens).WithClock(fixedClock)
	err := handler.Execute(ctx, accounts.RefreshSessionMessage{RefreshToken: "stale.jwt"})

	require.ErrorIs(t, err, accounts.ErrRefreshTokenInvalid)
	tokens.AssertNotCalled(t, "GenerateAccessToken", mock.Anything)
	repo.AssertExpectations(t)
}

func TestRefreshSessionAfterLogoutIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	tokens := &MockTokenService{}

	// logout cleared the stored identifier
	account := &accounts.Account{ID: uuid.New()}

	tokens.On("ValidateRefresh", "refresh.jwt").
		Return(refreshClaims(account.ID, "session-id"), nil).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(account, nil).Once()

	handler := accounts.NewRefreshSessionHandler(repo, tokens).WithClock(fixedClock)
	err := handler.Execute(ctx, accounts.RefreshSessionMessage{RefreshToken: "refresh.jwt"})

	require.ErrorIs(t, err, accounts.ErrRefreshTokenInvalid)
	repo.AssertExpectations(t)
}

func TestRefreshSessionExpiredStoredSessionIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	tokens := &MockTokenService{}

	account := &accounts.Account{ID: uuid.New()}
	account.SetRefreshToken("session-id", testNow.Add(-time.Minute))

	tokens.On("ValidateRefresh", "refresh.jwt").
		Return(refreshClaims(account.ID, "session-id"), nil).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(account, nil).Once()

	handler := accounts.NewRefreshSessionHandler(repo, tokens).WithClock(fixedClock)
	err := handler.Execute(ctx, accounts.RefreshSessionMessage{RefreshToken: "refresh.jwt"})

	require.ErrorIs(t, err, accounts.ErrRefreshTokenInvalid)
	repo.AssertExpectations(t)
}

func TestRefreshSessionInvalidTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	tokens := &MockTokenService{}

	tokens.On("ValidateRefresh", "garbage").
		Return(nil, accounts.ErrRefreshTokenInvalid).Once()

	handler := accounts.NewRefreshSessionHandler(repo, tokens)
	err := handler.Execute(ctx, accounts.RefreshSessionMessage{RefreshToken: "garbage"})

	require.ErrorIs(t, err, accounts.ErrRefreshTokenInvalid)
	tokens.AssertExpectations(t)
}

func TestLogoutRevokesSessionIdempotently(t *testing.T) {
	ctx := context.Background()

	accountID := uuid.New()

	repo := newMockRepo()
	repo.AccountsRepo.On("ClearRefreshToken", mock.Anything, accountID).
		Return(nil).Twice()

	handler := accounts.NewLogoutHandler(repo)
	require.NoError(t, handler.Execute(ctx, accounts.LogoutMessage{AccountID: accountID}))
	require.NoError(t, handler.Execute(ctx, accounts.LogoutMessage{AccountID: accountID}))

	repo.AssertExpectations(t)
}
