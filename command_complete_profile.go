package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CompleteProfileMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone_number"`
	Address    string `json:"address"`
	OnResponse func(resp *CompleteProfileResponse)
}

func (e CompleteProfileMessage) Type() string { return "account.complete_profile" }

type CompleteProfileResponse struct {
	Account *Account
	Profile *Profile
}

type CompleteProfileHandler struct {
	repo  RepositoryManager
	clock Clock
}

func NewCompleteProfileHandler(repo RepositoryManager) *CompleteProfileHandler {
	return &CompleteProfileHandler{
		repo:  repo,
		clock: time.Now,
	}
}

func (h *CompleteProfileHandler) WithClock(clock Clock) *CompleteProfileHandler {
	h.clock = resolveClock(clock)
	return h
}

func (h *CompleteProfileHandler) Execute(ctx context.Context, event CompleteProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute finishes an invitation: the account gets its chosen password,
// becomes verified, the invite token is consumed, and the personal data
// lands in a new profile record.
func (h *CompleteProfileHandler) execute(ctx context.Context, event CompleteProfileMessage) error {
	account := &Account{}
	profile := &Profile{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidatePhoneNumber(event.Phone); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByProfileCreationToken(ctx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up invitation token")
		}

		if !account.IsProfileCreationTokenValid(h.clock()) {
			return ErrTokenExpired
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Accounts().FinishProfileSetupTx(ctx, tx, account.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize account setup")
		}

		profile.ID = account.ID
		profile.Email = account.Email
		profile.FirstName = event.FirstName
		profile.LastName = event.LastName
		profile.Phone = event.Phone
		profile.Address = event.Address

		if profile, err = h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profile")
		}

		account.Verify()
		account.ClearProfileCreationToken()
		account.PasswordHash = passwordHash

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile completion transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&CompleteProfileResponse{
			Account: account,
			Profile: profile,
		})
	}

	return nil
}
