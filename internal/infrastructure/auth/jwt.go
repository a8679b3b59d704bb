// Package auth issues and validates the signed profile tokens that bind an
// HTTP caller to one storefront profile.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/infrastructure/config"
)

// TokenType distinguishes profile tokens from any other JWT signed with the
// same secret
const TokenType = "profile"

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingProfileID = errors.New("missing profile_id in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrMissingSecret    = errors.New("token secret is empty")
)

// Claims are the profile token claims. Subject and ProfileID carry the same id.
type Claims struct {
	jwt.RegisteredClaims
	ProfileID string `json:"profile_id"`
	TokenType string `json:"token_type"`
}

// IssuedToken is a freshly signed profile token
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // Bearer
}

// TokenService signs and validates profile tokens with HS256
type TokenService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenService creates a token service from the profile config
func NewTokenService(cfg config.ProfileConfig) (*TokenService, error) {
	if cfg.TokenSecret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenService{
		secret:     []byte(cfg.TokenSecret),
		expiration: cfg.TokenTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

// Issue signs a token for profileID
func (s *TokenService) Issue(profileID string) (*IssuedToken, error) {
	if profileID == "" {
		return nil, ErrMissingProfileID
	}
	now := s.now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   profileID,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ProfileID: profileID,
		TokenType: TokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// Validate parses tokenString and returns its claims
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != TokenType {
		return nil, ErrInvalidTokenType
	}
	if claims.ProfileID == "" || claims.Subject != claims.ProfileID {
		return nil, ErrMissingProfileID
	}
	return claims, nil
}

// Expiration returns the configured token lifetime
func (s *TokenService) Expiration() time.Duration {
	return s.expiration
}

// GetExpiresAtTime returns the token's expiration time as time.Time
func (c *Claims) GetExpiresAtTime() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
