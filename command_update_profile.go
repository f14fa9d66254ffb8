package accounts

import (
	"context"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PictureUpload carries an incoming profile picture. Size must be the
// exact byte length of the body.
type PictureUpload struct {
	ContentType string
	Body        io.Reader
	Size        int64
}

type UpdateProfileMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	FirstName  *string   `json:"first_name"`
	LastName   *string   `json:"last_name"`
	Phone      *string   `json:"phone_number"`
	Address    *string   `json:"address"`
	Picture    *PictureUpload
	OnResponse func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "profile.update" }

type UpdateProfileResponse struct {
	Profile *Profile
}

type UpdateProfileHandler struct {
	repo   RepositoryManager
	images ImageStore
	logger Logger
}

func NewUpdateProfileHandler(repo RepositoryManager, images ImageStore) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:   repo,
		images: images,
		logger: defLogger{},
	}
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	profile := &Profile{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Phone != nil {
		if err := ValidatePhoneNumber(*event.Phone); err != nil {
			return err
		}
	}

	pictureURL := ""
	if event.Picture != nil {
		if h.images == nil {
			return goerrors.New("picture uploads are not configured", goerrors.CategoryOperation).
				WithCode(goerrors.CodeInternal)
		}

		url, err := h.images.Upload(ctx, event.AccountID, event.Picture.ContentType, event.Picture.Body, event.Picture.Size)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to upload profile picture")
		}
		pictureURL = url
	}

	previousPicture := ""

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		profile, err = h.repo.Profiles().GetByID(ctx, event.AccountID.String())
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve profile")
			}

			// the blank profile is provisioned by the registration saga;
			// create it lazily when that write was lost
			account, err := h.repo.Accounts().GetByID(ctx, event.AccountID.String())
			if err != nil {
				if repository.IsRecordNotFound(err) {
					return ErrProfileNotFound
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for profile update")
			}

			profile = &Profile{ID: account.ID, Email: account.Email}
			if profile, err = h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision profile")
			}
		}

		if event.FirstName != nil {
			profile.FirstName = *event.FirstName
		}
		if event.LastName != nil {
			profile.LastName = *event.LastName
		}
		if event.Phone != nil {
			profile.Phone = *event.Phone
		}
		if event.Address != nil {
			profile.Address = *event.Address
		}
		if pictureURL != "" {
			previousPicture = profile.ProfilePicture
			profile.ProfilePicture = pictureURL
		}

		if profile, err = h.repo.Profiles().UpdateTx(ctx, tx, profile,
			repository.UpdateByID(profile.ID.String()),
		); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile update")
		}

		return nil
	})

	if err != nil {
		// the new picture is orphaned when the transaction fails
		if pictureURL != "" {
			if derr := h.images.Delete(ctx, pictureURL); derr != nil {
				h.logger.Warn("failed to clean up orphaned picture %s: %v", pictureURL, derr)
			}
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	// best effort: the replaced picture should not linger in storage, but a
	// delete failure does not fail the update
	if previousPicture != "" {
		if derr := h.images.Delete(ctx, previousPicture); derr != nil {
			h.logger.Warn("failed to delete previous picture %s: %v", previousPicture, derr)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{Profile: profile})
	}

	return nil
}
