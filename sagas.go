package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterSagas wires the event subscribers: verification mail and blank
// profile provisioning after registration, invite mail after invitation,
// reset mail after a reset request.
func RegisterSagas(d *Dispatcher, repo RepositoryManager, mailer Mailer, logger Logger) {
	if logger == nil {
		logger = defLogger{}
	}

	s := &sagas{repo: repo, mailer: mailer, logger: logger}

	d.Subscribe(AccountRegisteredEvent{}.Type(), s.onAccountRegistered)
	d.Subscribe(AccountInvitedEvent{}.Type(), s.onAccountInvited)
	d.Subscribe(PasswordResetRequestedEvent{}.Type(), s.onPasswordResetRequested)
}

type sagas struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

// onAccountRegistered provisions the blank profile and sends the
// verification mail. The profile write is independent from the account
// transaction: if it fails the account still exists and the profile is
// created lazily on first update.
func (s *sagas) onAccountRegistered(ctx context.Context, event Event) error {
	evt, ok := event.(AccountRegisteredEvent)
	if !ok {
		return nil
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile := &Profile{
			ID:    evt.AccountID,
			Email: evt.Email,
		}
		_, err := s.repo.Profiles().CreateTx(ctx, tx, profile)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to provision blank profile account_id=%s: %v", evt.AccountID.String(), err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, evt.Email, evt.VerificationToken); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send verification email")
	}

	return nil
}

func (s *sagas) onAccountInvited(ctx context.Context, event Event) error {
	evt, ok := event.(AccountInvitedEvent)
	if !ok {
		return nil
	}

	if err := s.mailer.SendProfileCreationEmail(ctx, evt.Email, evt.ProfileCreationToken); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send invitation email")
	}

	return nil
}

func (s *sagas) onPasswordResetRequested(ctx context.Context, event Event) error {
	evt, ok := event.(PasswordResetRequestedEvent)
	if !ok {
		return nil
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, evt.Email, evt.ResetToken); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send password reset email")
	}

	return nil
}
