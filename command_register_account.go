package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account *Account
}

type RegisterAccountHandler struct {
	repo      RepositoryManager
	publisher EventPublisher
	clock     Clock
}

func NewRegisterAccountHandler(repo RepositoryManager, publisher EventPublisher) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:      repo,
		publisher: normalizePublisher(publisher),
		clock:     time.Now,
	}
}

func (h *RegisterAccountHandler) WithClock(clock Clock) *RegisterAccountHandler {
	h.clock = resolveClock(clock)
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		total, err := h.repo.Accounts().CountTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count accounts")
		}

		account.Email = event.Email
		account.PasswordHash = hash
		account.Role = RoleUser
		if total == 0 {
			account.Role = RoleSuperAdmin
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
				account.ID = id
			}
		}

		now := h.clock()
		account.SetVerificationToken(newTokenID(), now.Add(VerificationTokenTTL))

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			// concurrent registration for the same address loses here on the
			// unique email index
			if IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	h.publisher.Publish(ctx, AccountRegisteredEvent{
		AccountID:         account.ID,
		Email:             account.Email,
		VerificationToken: account.VerificationToken,
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{Account: account})
	}

	return nil
}
