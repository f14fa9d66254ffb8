package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's role
type Role = string

const (
	// RoleUser is the base role every self-registered account gets
	RoleUser Role = "user"
	// RoleAdmin can invite accounts and list users
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is auto-assigned to the first registered account
	// and is immutable afterwards
	RoleSuperAdmin Role = "superAdmin"
)

// Default token lifetimes. Each one-time token kind carries its own
// expiry column on the account record.
const (
	VerificationTokenTTL    = 24 * time.Hour
	PasswordResetTokenTTL   = time.Hour
	ProfileCreationTokenTTL = 7 * 24 * time.Hour
)

// Account is the authentication record. Tokens follow the lifecycle
// absent -> issued -> (consumed | expired); issuing a token of a kind
// replaces any previous one of the same kind.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role,omitempty"`

	EmailVerified bool `bun:"is_email_verified" json:"is_email_verified"`

	VerificationToken          string     `bun:"verification_token,nullzero" json:"-"`
	VerificationTokenExpiresAt *time.Time `bun:"verification_token_expires_at,nullzero" json:"-"`

	PasswordResetToken          string     `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetTokenExpiresAt *time.Time `bun:"password_reset_token_expires_at,nullzero" json:"-"`

	ProfileCreationToken          string     `bun:"profile_creation_token,nullzero" json:"-"`
	ProfileCreationTokenExpiresAt *time.Time `bun:"profile_creation_token_expires_at,nullzero" json:"-"`

	RefreshToken          string     `bun:"refresh_token,nullzero" json:"-"`
	RefreshTokenExpiresAt *time.Time `bun:"refresh_token_expires_at,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NormalizeEmail lowercases and trims an address so uniqueness checks are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetVerificationToken issues a fresh email verification token.
func (a *Account) SetVerificationToken(token string, expiresAt time.Time) {
	a.VerificationToken = token
	a.VerificationTokenExpiresAt = &expiresAt
}

// ClearVerificationToken consumes the verification token.
func (a *Account) ClearVerificationToken() {
	a.VerificationToken = ""
	a.VerificationTokenExpiresAt = nil
}

// IsVerificationTokenValid reports whether the token exists and has not
// passed its expiry at the given instant.
func (a *Account) IsVerificationTokenValid(now time.Time) bool {
	return tokenValid(a.VerificationToken, a.VerificationTokenExpiresAt, now)
}

// SetPasswordResetToken issues a fresh password reset token.
func (a *Account) SetPasswordResetToken(token string, expiresAt time.Time) {
	a.PasswordResetToken = token
	a.PasswordResetTokenExpiresAt = &expiresAt
}

// ClearPasswordResetToken consumes the reset token.
func (a *Account) ClearPasswordResetToken() {
	a.PasswordResetToken = ""
	a.PasswordResetTokenExpiresAt = nil
}

func (a *Account) IsPasswordResetTokenValid(now time.Time) bool {
	return tokenValid(a.PasswordResetToken, a.PasswordResetTokenExpiresAt, now)
}

// SetProfileCreationToken issues the invitation token used to complete
// profile setup.
func (a *Account) SetProfileCreationToken(token string, expiresAt time.Time) {
	a.ProfileCreationToken = token
	a.ProfileCreationTokenExpiresAt = &expiresAt
}

func (a *Account) ClearProfileCreationToken() {
	a.ProfileCreationToken = ""
	a.ProfileCreationTokenExpiresAt = nil
}

func (a *Account) IsProfileCreationTokenValid(now time.Time) bool {
	return tokenValid(a.ProfileCreationToken, a.ProfileCreationTokenExpiresAt, now)
}

// SetRefreshToken stores the refresh token identifier issued at login.
func (a *Account) SetRefreshToken(token string, expiresAt time.Time) {
	a.RefreshToken = token
	a.RefreshTokenExpiresAt = &expiresAt
}

// ClearRefreshToken invalidates the current session on logout.
func (a *Account) ClearRefreshToken() {
	a.RefreshToken = ""
	a.RefreshTokenExpiresAt = nil
}

func (a *Account) IsRefreshTokenValid(now time.Time) bool {
	return tokenValid(a.RefreshToken, a.RefreshTokenExpiresAt, now)
}

// Verify marks the email as verified and consumes the verification token.
func (a *Account) Verify() {
	a.EmailVerified = true
	a.ClearVerificationToken()
}

func tokenValid(token string, expiresAt *time.Time, now time.Time) bool {
	if token == "" || expiresAt == nil {
		return false
	}
	return now.Before(*expiresAt)
}

// Profile is the user facing personal data record. It shares its id with
// the Account it belongs to but is stored and evolved independently.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull" json:"email,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	ProfilePicture string     `bun:"profile_picture" json:"profile_picture,omitempty"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	Address        string     `bun:"address" json:"address,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
