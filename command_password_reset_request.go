package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestPasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *RequestPasswordResetResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "account.password_reset_request" }

type RequestPasswordResetResponse struct {
	AccountID  string
	ResetToken string
}

type RequestPasswordResetHandler struct {
	repo      RepositoryManager
	publisher EventPublisher
	clock     Clock
}

func NewRequestPasswordResetHandler(repo RepositoryManager, publisher EventPublisher) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{
		repo:      repo,
		publisher: normalizePublisher(publisher),
		clock:     time.Now,
	}
}

func (h *RequestPasswordResetHandler) WithClock(clock Clock) *RequestPasswordResetHandler {
	h.clock = resolveClock(clock)
	return h
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		// a new request replaces any outstanding reset token
		expiresAt := h.clock().Add(PasswordResetTokenTTL)
		record := &Account{ID: account.ID}
		record.SetPasswordResetToken(newTokenID(), expiresAt)

		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, record,
			repository.UpdateByID(account.ID.String()),
		); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset token")
		}

		account.SetPasswordResetToken(record.PasswordResetToken, expiresAt)

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset request transaction failed")
	}

	h.publisher.Publish(ctx, PasswordResetRequestedEvent{
		AccountID:  account.ID,
		Email:      account.Email,
		ResetToken: account.PasswordResetToken,
	})

	if event.OnResponse != nil {
		event.OnResponse(&RequestPasswordResetResponse{
			AccountID:  account.ID.String(),
			ResetToken: account.PasswordResetToken,
		})
	}

	return nil
}
