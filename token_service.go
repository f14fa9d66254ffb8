package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and validates the signed session token pair.
type TokenService interface {
	GenerateAccessToken(account *Account) (string, error)
	GenerateRefreshToken(account *Account, refreshID string) (string, time.Time, error)
	Validate(tokenString string) (AuthClaims, error)
	ValidateRefresh(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens without tying callers to a specific
// signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface with HS256
// signing and separate TTLs for access and refresh tokens.
type TokenServiceImpl struct {
	signingKey      []byte
	accessTTLHours  int
	refreshTTLHours int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
	clock           Clock
}

// NewTokenService creates a new TokenService instance. TTLs are expressed
// in hours, matching the configuration surface.
func NewTokenService(signingKey []byte, accessTTL, refreshTTL int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		accessTTLHours:  accessTTL,
		refreshTTLHours: refreshTTL,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
		clock:           time.Now,
	}
}

// WithClock overrides the time source, used to pin expiry in tests.
func (ts *TokenServiceImpl) WithClock(clock Clock) *TokenServiceImpl {
	ts.clock = resolveClock(clock)
	return ts
}

// GenerateAccessToken creates the short-lived JWT carrying identity and role.
func (ts *TokenServiceImpl) GenerateAccessToken(account *Account) (string, error) {
	if account == nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}

	now := ts.clock()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audienceCopy(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.accessTTLHours) * time.Hour)),
		},
		UID:           account.ID.String(),
		AccountEmail:  account.Email,
		AccountRole:   account.Role,
		Use:           TokenUseAccess,
		EmailVerified: account.EmailVerified,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// GenerateRefreshToken creates the long-lived JWT embedding the opaque
// refresh identifier that is also persisted on the account. Returns the
// signed token and its expiry so the caller can store both.
func (ts *TokenServiceImpl) GenerateRefreshToken(account *Account, refreshID string) (string, time.Time, error) {
	if account == nil {
		return "", time.Time{}, errors.New("account must not be nil", errors.CategoryInternal)
	}

	now := ts.clock()
	expiresAt := now.Add(time.Duration(ts.refreshTTLHours) * time.Hour)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audienceCopy(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       account.ID.String(),
		Use:       TokenUseRefresh,
		RefreshID: refreshID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses an access token and returns structured claims.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenUse() != TokenUseAccess {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ValidateRefresh parses a refresh token and returns structured claims.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (AuthClaims, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenUse() != TokenUseRefresh {
		return nil, ErrRefreshTokenInvalid
	}

	return claims, nil
}

func (ts *TokenServiceImpl) parse(tokenString string) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service encountered unexpected signing method alg=%v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode).
			WithCode(errors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token service could not decode or validate claims")
	return nil, ErrTokenInvalid
}

func (ts *TokenServiceImpl) audienceCopy() jwt.ClaimStrings {
	if len(ts.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(ts.audience))
	copy(aud, ts.audience)
	return aud
}

// newTokenID produces the unique identifier stamped on every signed token
// and stored on the account for refresh validation.
func newTokenID() string {
	return uuid.NewString()
}
