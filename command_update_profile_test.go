package accounts_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/userkit/go-accounts"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfileMergesProvidedFields(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()

	profile := &accounts.Profile{
		ID:        uuid.New(),
		Email:     "user@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Analytical Row",
	}

	repo.ProfilesRepo.On("GetByID", mock.Anything, profile.ID.String()).
		Return(profile, nil).Once()
	repo.ProfilesRepo.On("UpdateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *accounts.Profile) bool {
		// only first name changes, the rest keeps its value
		return p.FirstName == "Augusta" &&
			p.LastName == "Lovelace" &&
			p.Address == "12 Analytical Row"
	})).Return(profile, nil).Once()

	handler := accounts.NewUpdateProfileHandler(repo, nil)
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: profile.ID,
		FirstName: strPtr("Augusta"),
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdateProfileLazilyProvisionsMissingProfile(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()

	account := &accounts.Account{ID: uuid.New(), Email: "user@example.com"}
	provisioned := &accounts.Profile{ID: account.ID, Email: account.Email}

	repo.ProfilesRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, account.ID.String()).
		Return(account, nil).Once()
	repo.ProfilesRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *accounts.Profile) bool {
		return p.ID == account.ID && p.Email == account.Email
	})).Return(provisioned, nil).Once()
	repo.ProfilesRepo.On("UpdateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(provisioned, nil).Once()

	handler := accounts.NewUpdateProfileHandler(repo, nil)
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: account.ID,
		LastName:  strPtr("Lovelace"),
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUpdateProfileUnknownAccountNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()

	accountID := uuid.New()
	repo.ProfilesRepo.On("GetByID", mock.Anything, accountID.String()).
		Return(nil, notFound()).Once()
	repo.AccountsRepo.On("GetByID", mock.Anything, accountID.String()).
		Return(nil, notFound()).Once()

	handler := accounts.NewUpdateProfileHandler(repo, nil)
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: accountID,
		LastName:  strPtr("Lovelace"),
	})

	require.ErrorIs(t, err, accounts.ErrProfileNotFound)
	repo.AssertExpectations(t)
}

func TestUpdateProfileInvalidPhoneIsRejected(t *testing.T) {
	ctx := context.Background()

	handler := accounts.NewUpdateProfileHandler(newMockRepo(), nil)
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: uuid.New(),
		Phone:     strPtr("555-not-a-number"),
	})

	require.Error(t, err)
}

func TestUpdateProfilePictureReplacesAndDeletesOld(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	images := &MockImageStore{}

	profile := &accounts.Profile{
		ID:             uuid.New(),
		Email:          "user@example.com",
		ProfilePicture: "https://cdn.example.com/avatars/old.png",
	}

	body := bytes.NewReader([]byte("png-bytes"))

	images.On("Upload", mock.Anything, profile.ID, "image/png", body, int64(9)).
		Return("https://cdn.example.com/avatars/new.png", nil).Once()
	repo.ProfilesRepo.On("GetByID", mock.Anything, profile.ID.String()).
		Return(profile, nil).Once()
	repo.ProfilesRepo.On("UpdateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *accounts.Profile) bool {
		return p.ProfilePicture == "https://cdn.example.com/avatars/new.png"
	})).Return(profile, nil).Once()
	images.On("Delete", mock.Anything, "https://cdn.example.com/avatars/old.png").
		Return(nil).Once()

	handler := accounts.NewUpdateProfileHandler(repo, images).WithLogger(testLogger{})
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: profile.ID,
		Picture: &accounts.PictureUpload{
			ContentType: "image/png",
			Body:        body,
			Size:        9,
		},
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
	images.AssertExpectations(t)
}

func TestUpdateProfilePictureOrphanCleanupOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	images := &MockImageStore{}

	profile := &accounts.Profile{ID: uuid.New(), Email: "user@example.com"}
	body := bytes.NewReader([]byte("png-bytes"))

	images.On("Upload", mock.Anything, profile.ID, "image/png", body, int64(9)).
		Return("https://cdn.example.com/avatars/new.png", nil).Once()
	repo.ProfilesRepo.On("GetByID", mock.Anything, profile.ID.String()).
		Return(profile, nil).Once()
	repo.ProfilesRepo.On("UpdateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("disk full")).Once()
	images.On("Delete", mock.Anything, "https://cdn.example.com/avatars/new.png").
		Return(nil).Once()

	handler := accounts.NewUpdateProfileHandler(repo, images).WithLogger(testLogger{})
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: profile.ID,
		Picture: &accounts.PictureUpload{
			ContentType: "image/png",
			Body:        body,
			Size:        9,
		},
	})

	require.Error(t, err)
	repo.AssertExpectations(t)
	images.AssertExpectations(t)
}

func TestUpdateProfilePictureWithoutStoreFails(t *testing.T) {
	ctx := context.Background()

	handler := accounts.NewUpdateProfileHandler(newMockRepo(), nil)
	err := handler.Execute(ctx, accounts.UpdateProfileMessage{
		AccountID: uuid.New(),
		Picture: &accounts.PictureUpload{
			ContentType: "image/png",
			Body:        bytes.NewReader([]byte("png")),
			Size:        3,
		},
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "not configured")
}
