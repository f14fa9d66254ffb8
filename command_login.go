package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(resp *LoginResponse)
}

func (e LoginMessage) Type() string { return "account.login" }

type LoginResponse struct {
	Account      *Account
	AccessToken  string
	RefreshToken string
}

type LoginHandler struct {
	repo   RepositoryManager
	tokens TokenService
	logger Logger
}

func NewLoginHandler(repo RepositoryManager, tokens TokenService) *LoginHandler {
	return &LoginHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (h *LoginHandler) WithLogger(logger Logger) *LoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute runs the fixed precondition order: unknown email, wrong password,
// unverified email. All three surface the same unauthorized error.
func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	resp := &LoginResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for login")
		}

		if err := ComparePasswordAndHash(event.Password, account.PasswordHash); err != nil {
			h.logger.Debug("login password mismatch for %s", account.Email)
			return ErrInvalidCredentials
		}

		if !account.EmailVerified {
			h.logger.Debug("login attempt on unverified account %s", account.ID.String())
			return ErrInvalidCredentials
		}

		refreshID := newTokenID()
		refreshToken, expiresAt, err := h.tokens.GenerateRefreshToken(account, refreshID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
		}

		if err := h.repo.Accounts().StoreRefreshTokenTx(ctx, tx, account.ID, refreshID, expiresAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
		}

		accessToken, err := h.tokens.GenerateAccessToken(account)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate access token")
		}

		resp.Account = account
		resp.AccessToken = accessToken
		resp.RefreshToken = refreshToken

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "login transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
