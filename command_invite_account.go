package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InviteAccountMessage struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	OnResponse func(resp *InviteAccountResponse)
}

func (e InviteAccountMessage) Type() string { return "account.invite" }

type InviteAccountResponse struct {
	Account *Account
	// TemporaryPassword is the generated initial credential. It is returned
	// once and never stored in clear.
	TemporaryPassword string
}

type InviteAccountHandler struct {
	repo      RepositoryManager
	publisher EventPublisher
	clock     Clock
}

func NewInviteAccountHandler(repo RepositoryManager, publisher EventPublisher) *InviteAccountHandler {
	return &InviteAccountHandler{
		repo:      repo,
		publisher: normalizePublisher(publisher),
		clock:     time.Now,
	}
}

func (h *InviteAccountHandler) WithClock(clock Clock) *InviteAccountHandler {
	h.clock = resolveClock(clock)
	return h
}

func (h *InviteAccountHandler) Execute(ctx context.Context, event InviteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteAccountHandler) execute(ctx context.Context, event InviteAccountMessage) error {
	account := &Account{}
	tempPassword := ""

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role, ok := ParseRole(event.Role)
	if !ok || !IsAssignableRole(role) {
		return ErrRoleNotAssignable
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		tempPassword = GenerateTemporaryPassword()
		hash, err := HashPassword(tempPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash temporary password")
		}

		account.Email = event.Email
		account.PasswordHash = hash
		account.Role = role
		account.SetProfileCreationToken(newTokenID(), h.clock().Add(ProfileCreationTokenTTL))

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			if IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create invited account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account invitation transaction failed")
	}

	h.publisher.Publish(ctx, AccountInvitedEvent{
		AccountID:            account.ID,
		Email:                account.Email,
		Role:                 account.Role,
		ProfileCreationToken: account.ProfileCreationToken,
	})

	if event.OnResponse != nil {
		event.OnResponse(&InviteAccountResponse{
			Account:           account,
			TemporaryPassword: tempPassword,
		})
	}

	return nil
}
