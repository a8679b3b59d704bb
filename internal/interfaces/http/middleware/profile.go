package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/profile"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Profile context keys
const (
	ProfileClaimsKey = "profile_claims"
	ProfileIDKey     = "profile_id"
	ProfileKey       = "profile"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// ProfileLoader resolves a profile id to its loaded stores
type ProfileLoader interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
}

// ProfileAuthConfig holds configuration for the profile middleware
type ProfileAuthConfig struct {
	// Tokens validates profile tokens; required
	Tokens *auth.TokenService
	// Revocations is optional; when set, revoked token ids are refused
	Revocations *auth.Revocations
	// Profiles is required
	Profiles ProfileLoader
	Logger   *zap.Logger
}

// ProfileAuth authenticates the profile token and loads the profile's
// stores into the gin context
func ProfileAuth(cfg ProfileAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			abortAuth(c, log, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortAuth(c, log, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			abortAuth(c, log, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Tokens.Validate(tokenString)
		if err != nil {
			abortAuth(c, log, err, "Token validation failed")
			return
		}

		ctx := c.Request.Context()
		if cfg.Revocations != nil {
			revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
			if err != nil {
				// Fail open on storage errors
				logger.WithLogger(ctx, log).Error("Failed to check token revocation",
					zap.String("jti", claims.ID),
					zap.Error(err),
				)
			} else if revoked {
				abortAuth(c, log, auth.ErrTokenRevoked, "Token has been revoked")
				return
			}
		}

		ctx = logger.WithProfileID(ctx, claims.ProfileID)
		telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.AttrProfileID, claims.ProfileID)

		p, err := cfg.Profiles.Get(ctx, claims.ProfileID)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				abortAuth(c, log, err, "Profile no longer exists")
				return
			}
			logger.WithLogger(ctx, log).Error("Failed to load profile", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeStorage, "Profile could not be loaded", GetRequestID(c),
			))
			return
		}

		c.Set(ProfileClaimsKey, claims)
		c.Set(ProfileIDKey, claims.ProfileID)
		c.Set(ProfileKey, p)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortAuth(c *gin.Context, log *zap.Logger, err error, message string) {
	logger.WithLogger(c.Request.Context(), log).Warn("Profile authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code := dto.ErrCodeUnauthorized
	text := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, text = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingProfileID):
		code, text = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, profile.ErrProfileNotFound):
		text = message
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, text, GetRequestID(c)))
}

// GetProfile returns the profile loaded by ProfileAuth
func GetProfile(c *gin.Context) *profile.Profile {
	if v, ok := c.Get(ProfileKey); ok {
		if p, ok := v.(*profile.Profile); ok {
			return p
		}
	}
	return nil
}

// GetProfileClaims returns the validated token claims
func GetProfileClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ProfileClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
