package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/profile"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// ProfileHandler creates and deletes shopper profiles
type ProfileHandler struct {
	BaseHandler
	registry    *profile.Registry
	tokens      *auth.TokenService
	revocations *auth.Revocations
}

// NewProfileHandler creates a new profile handler. revocations may be nil,
// in which case deleted profiles' tokens simply stop resolving.
func NewProfileHandler(registry *profile.Registry, tokens *auth.TokenService, revocations *auth.Revocations) *ProfileHandler {
	return &ProfileHandler{
		registry:    registry,
		tokens:      tokens,
		revocations: revocations,
	}
}

// Create handles POST /profiles
// Allocate an anonymous profile with an empty cart and return its token
func (h *ProfileHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.registry.Create(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	issued, err := h.tokens.Issue(p.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ProfileResponse{
		ProfileID: p.ID,
		Token:     issued.Token,
		TokenType: issued.TokenType,
		ExpiresAt: issued.ExpiresAt,
	})
}

// Delete handles DELETE /profiles/current
// Log out, clear the cart, forget the profile and revoke its token
func (h *ProfileHandler) Delete(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.registry.Delete(ctx, p.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	if claims := middleware.GetProfileClaims(c); claims != nil && h.revocations != nil {
		if err := h.revocations.Revoke(ctx, claims); err != nil {
			logger.L(ctx).Warn("Failed to revoke profile token", zap.Error(err))
		}
	}
	h.NoContent(c)
}
