package accounts

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenExpired marks one-time or session tokens past their expiry
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenInvalid marks unknown, malformed, or consumed tokens
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeEmailTaken marks duplicate registration attempts
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeRoleImmutable marks attempts to touch the superAdmin tag
	TextCodeRoleImmutable = "ROLE_IMMUTABLE"
)

// ErrInvalidCredentials is returned for unknown email, wrong password, or
// unverified email. The order of checks is fixed but the error is shared so
// callers cannot probe which precondition failed.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrEmailTaken is returned when registering or inviting an address that
// already has an account.
var ErrEmailTaken = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrAccountNotFound is returned for lookups against unknown accounts.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrProfileNotFound is returned for lookups against unknown profiles.
var ErrProfileNotFound = errors.New("profile not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenInvalid covers unknown or already consumed one-time tokens.
var ErrTokenInvalid = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired covers tokens presented after their expiry.
var ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenInvalid is returned when the presented refresh token does
// not match the stored identifier or the session was revoked.
var ErrRefreshTokenInvalid = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrRoleNotAssignable rejects roles other than admin and user.
var ErrRoleNotAssignable = errors.New("only admin and user roles can be assigned", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrSuperAdminImmutable rejects role changes on the superAdmin account.
var ErrSuperAdminImmutable = errors.New("cannot modify superAdmin role", errors.CategoryValidation).
	WithTextCode(TextCodeRoleImmutable).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword wraps the bcrypt comparison failure
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsUniqueViolation detects the driver-level unique constraint error that
// backs the email uniqueness guarantee. The race between concurrent
// registrations is resolved only here (see RegisterAccountHandler).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// IsTokenExpiredError will check for expired session tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
