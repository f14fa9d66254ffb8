package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type RefreshSessionMessage struct {
	RefreshToken string `json:"refresh_token"`
	OnResponse   func(resp *RefreshSessionResponse)
}

func (e RefreshSessionMessage) Type() string { return "account.refresh_session" }

type RefreshSessionResponse struct {
	AccessToken string
}

type RefreshSessionHandler struct {
	repo   RepositoryManager
	tokens TokenService
	clock  Clock
}

func NewRefreshSessionHandler(repo RepositoryManager, tokens TokenService) *RefreshSessionHandler {
	return &RefreshSessionHandler{
		repo:   repo,
		tokens: tokens,
		clock:  time.Now,
	}
}

func (h *RefreshSessionHandler) WithClock(clock Clock) *RefreshSessionHandler {
	h.clock = resolveClock(clock)
	return h
}

func (h *RefreshSessionHandler) Execute(ctx context.Context, event RefreshSessionMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during session refresh",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute accepts a refresh JWT, compares the embedded refresh identifier
// against the one stored at login, and mints a fresh access token. The
// refresh token itself stays valid until logout or expiry.
func (h *RefreshSessionHandler) execute(ctx context.Context, event RefreshSessionMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.tokens.ValidateRefresh(event.RefreshToken)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return ErrRefreshTokenInvalid
	}

	jwtClaims, ok := claims.(*JWTClaims)
	if !ok || jwtClaims.RefreshID == "" {
		return ErrRefreshTokenInvalid
	}

	account, err := h.repo.Accounts().GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrRefreshTokenInvalid
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for refresh")
	}

	if account.RefreshToken != jwtClaims.RefreshID {
		return ErrRefreshTokenInvalid
	}

	if !account.IsRefreshTokenValid(h.clock()) {
		return ErrRefreshTokenInvalid
	}

	accessToken, err := h.tokens.GenerateAccessToken(account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate access token")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RefreshSessionResponse{AccessToken: accessToken})
	}

	return nil
}
