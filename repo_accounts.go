package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NOTE: token consumption clears columns back to NULL, which the ORM update
// skips for zero values. These transitions run as raw statements.
var MarkAccountVerifiedSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE,
	"verification_token" = NULL,
	"verification_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"password_reset_token" = NULL,
	"password_reset_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var FinishProfileSetupSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"is_email_verified" = TRUE,
	"profile_creation_token" = NULL,
	"profile_creation_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var StoreRefreshTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"refresh_token" = ?,
	"refresh_token_expires_at" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var ClearRefreshTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"refresh_token" = NULL,
	"refresh_token_expires_at" = NULL
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// Accounts exposes the account store. Token lookups go through dedicated
// finders because each one-time token kind has its own column.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	GetByPasswordResetToken(ctx context.Context, token string) (*Account, error)
	GetByProfileCreationToken(ctx context.Context, token string) (*Account, error)

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	MarkVerified(ctx context.Context, id uuid.UUID) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	FinishProfileSetup(ctx context.Context, id uuid.UUID, passwordHash string) error
	FinishProfileSetupTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	StoreRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	Count(ctx context.Context) (int, error)
	CountTx(ctx context.Context, tx bun.IDB) (int, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// NewAccountsRepository builds the bun-backed account repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": NormalizeEmail(email)})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.getByTokenColumn(ctx, "verification_token", token)
}

func (a *accounts) GetByPasswordResetToken(ctx context.Context, token string) (*Account, error) {
	return a.getByTokenColumn(ctx, "password_reset_token", token)
}

func (a *accounts) GetByProfileCreationToken(ctx context.Context, token string) (*Account, error) {
	return a.getByTokenColumn(ctx, "profile_creation_token", token)
}

func (a *accounts) getByTokenColumn(ctx context.Context, column, token string) (*Account, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"column": column})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkVerifiedTx(ctx, a.db, id)
}

func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.execTransition(ctx, tx, MarkAccountVerifiedSQL, id, id.String())
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execTransition(ctx, tx, ResetAccountPasswordSQL, id, passwordHash, id.String())
}

func (a *accounts) FinishProfileSetup(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.FinishProfileSetupTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) FinishProfileSetupTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execTransition(ctx, tx, FinishProfileSetupSQL, id, passwordHash, id.String())
}

func (a *accounts) StoreRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.StoreRefreshTokenTx(ctx, a.db, id, token, expiresAt)
}

func (a *accounts) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiresAt time.Time) error {
	return a.execTransition(ctx, tx, StoreRefreshTokenSQL, id, token, expiresAt, id.String())
}

func (a *accounts) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return a.ClearRefreshTokenTx(ctx, a.db, id)
}

// ClearRefreshTokenTx keeps logout idempotent: clearing a token for an
// unknown account is not an error.
func (a *accounts) ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	err := a.execTransition(ctx, tx, ClearRefreshTokenSQL, id, id.String())
	if repository.IsRecordNotFound(err) {
		return nil
	}
	return err
}

func (a *accounts) execTransition(ctx context.Context, tx bun.IDB, query string, id uuid.UUID, args ...any) error {
	res, err := a.Repository.RawTx(ctx, tx, query, args...)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) Count(ctx context.Context) (int, error) {
	return a.CountTx(ctx, a.db)
}

func (a *accounts) CountTx(ctx context.Context, tx bun.IDB) (int, error) {
	return tx.NewSelect().Model((*Account)(nil)).Count(ctx)
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
