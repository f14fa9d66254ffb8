package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token use markers carried in the "use" claim so an access token cannot be
// replayed against the refresh endpoint and vice versa.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// AuthClaims is the read surface middleware and handlers get after a token
// has been validated.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	TokenUse() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
// Access tokens carry identity and role; refresh tokens additionally carry
// the opaque refresh token identifier persisted on the account.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid,omitempty"`
	AccountEmail  string `json:"email,omitempty"`
	AccountRole   string `json:"role,omitempty"`
	Use           string `json:"use,omitempty"`
	RefreshID     string `json:"rti,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the account email
func (c *JWTClaims) Email() string {
	return c.AccountEmail
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.AccountRole
}

// TokenUse distinguishes access from refresh tokens
func (c *JWTClaims) TokenUse() string {
	if c.Use == "" {
		return TokenUseAccess
	}
	return c.Use
}

// HasRole checks for an exact role match
func (c *JWTClaims) HasRole(role string) bool {
	return c.AccountRole == role
}

// IsAtLeast checks the role against the role hierarchy
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return RoleAtLeast(c.AccountRole, minRole)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = newTokenID()
	}
}
