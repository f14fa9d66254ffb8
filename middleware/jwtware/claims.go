package jwtware

import (
	"github.com/golang-jwt/jwt/v5"
)

// roleLevels duplicates the role hierarchy for claims validated without
// the accounts package (JWKS / raw key paths).
var roleLevels = map[string]int{
	"user":       0,
	"admin":      1,
	"superAdmin": 2,
}

// keyfuncValidator parses tokens with a jwt.Keyfunc when no richer
// validator was configured. Claims come back as a thin map adapter.
type keyfuncValidator struct {
	keyFunc jwt.Keyfunc
}

func (v keyfuncValidator) Validate(tokenString string) (AuthClaims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrJWTMissingOrMalformed
	}

	return mapClaims(claims), nil
}

// mapClaims adapts jwt.MapClaims to the AuthClaims surface.
type mapClaims jwt.MapClaims

func (m mapClaims) str(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (m mapClaims) Subject() string { return m.str("sub") }

func (m mapClaims) UserID() string {
	if uid := m.str("uid"); uid != "" {
		return uid
	}
	return m.Subject()
}

func (m mapClaims) Email() string { return m.str("email") }

func (m mapClaims) Role() string { return m.str("role") }

func (m mapClaims) TokenUse() string {
	if use := m.str("use"); use != "" {
		return use
	}
	return "access"
}

func (m mapClaims) HasRole(role string) bool { return m.Role() == role }

func (m mapClaims) IsAtLeast(minRole string) bool {
	level, ok := roleLevels[m.Role()]
	if !ok {
		return false
	}
	minLevel, ok := roleLevels[minRole]
	if !ok {
		return false
	}
	return level >= minLevel
}
