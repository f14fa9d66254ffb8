package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type GetAccountMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	OnResponse func(resp *GetAccountResponse)
}

func (e GetAccountMessage) Type() string { return "account.get" }

type GetAccountResponse struct {
	Account *Account
}

type GetAccountHandler struct {
	repo RepositoryManager
}

func NewGetAccountHandler(repo RepositoryManager) *GetAccountHandler {
	return &GetAccountHandler{repo: repo}
}

func (h *GetAccountHandler) Execute(ctx context.Context, event GetAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account lookup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *GetAccountHandler) execute(ctx context.Context, event GetAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByID(ctx, event.AccountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}

	if event.OnResponse != nil {
		event.OnResponse(&GetAccountResponse{Account: account})
	}

	return nil
}

type GetProfileMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	OnResponse func(resp *GetProfileResponse)
}

func (e GetProfileMessage) Type() string { return "profile.get" }

type GetProfileResponse struct {
	Profile *Profile
}

type GetProfileHandler struct {
	repo RepositoryManager
}

func NewGetProfileHandler(repo RepositoryManager) *GetProfileHandler {
	return &GetProfileHandler{repo: repo}
}

func (h *GetProfileHandler) Execute(ctx context.Context, event GetProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile lookup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *GetProfileHandler) execute(ctx context.Context, event GetProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	profile, err := h.repo.Profiles().GetByID(ctx, event.AccountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrProfileNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile")
	}

	if event.OnResponse != nil {
		event.OnResponse(&GetProfileResponse{Profile: profile})
	}

	return nil
}

type ListProfilesMessage struct {
	OnResponse func(resp *ListProfilesResponse)
}

func (e ListProfilesMessage) Type() string { return "profile.list" }

type ListProfilesResponse struct {
	Profiles []*Profile
}

type ListProfilesHandler struct {
	repo RepositoryManager
}

func NewListProfilesHandler(repo RepositoryManager) *ListProfilesHandler {
	return &ListProfilesHandler{repo: repo}
}

func (h *ListProfilesHandler) Execute(ctx context.Context, event ListProfilesMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile listing",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ListProfilesHandler) execute(ctx context.Context, event ListProfilesMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	profiles, err := h.repo.Profiles().List(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list profiles")
	}

	if event.OnResponse != nil {
		event.OnResponse(&ListProfilesResponse{Profiles: profiles})
	}

	return nil
}
