package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateRoleMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	Role       string    `json:"role"`
	OnResponse func(resp *UpdateRoleResponse)
}

func (e UpdateRoleMessage) Type() string { return "account.update_role" }

type UpdateRoleResponse struct {
	Account *Account
}

type UpdateRoleHandler struct {
	repo RepositoryManager
}

func NewUpdateRoleHandler(repo RepositoryManager) *UpdateRoleHandler {
	return &UpdateRoleHandler{repo: repo}
}

func (h *UpdateRoleHandler) Execute(ctx context.Context, event UpdateRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role update",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute assigns user or admin. The superAdmin tag can be neither granted
// nor revoked here.
func (h *UpdateRoleHandler) execute(ctx context.Context, event UpdateRoleMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role, ok := ParseRole(event.Role)
	if !ok || !IsAssignableRole(role) {
		return ErrRoleNotAssignable
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByID(ctx, event.AccountID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for role update")
		}

		if account.Role == RoleSuperAdmin {
			return ErrSuperAdminImmutable
		}

		if account.Role == role {
			return nil
		}

		record := &Account{ID: account.ID, Role: role}
		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, record,
			repository.UpdateByID(account.ID.String()),
		); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist role update")
		}

		account.Role = role

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdateRoleResponse{Account: account})
	}

	return nil
}
