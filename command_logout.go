package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type LogoutMessage struct {
	AccountID uuid.UUID `json:"account_id"`
}

func (e LogoutMessage) Type() string { return "account.logout" }

type LogoutHandler struct {
	repo RepositoryManager
}

func NewLogoutHandler(repo RepositoryManager) *LogoutHandler {
	return &LogoutHandler{repo: repo}
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute is idempotent: revoking a session that does not exist, or for an
// account that no longer exists, succeeds.
func (h *LogoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.repo.Accounts().ClearRefreshToken(ctx, event.AccountID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session")
	}

	return nil
}
