package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/profile"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends a success response carrying the item count
func (h *BaseHandler) List(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, count))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the body into req and answers 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.HandleValidation(c, err)
		return false
	}
	return true
}

// HandleValidation answers a binding failure
func (h *BaseHandler) HandleValidation(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// Profile returns the authenticated profile; it answers 401 when absent
func (h *BaseHandler) Profile(c *gin.Context) (*profile.Profile, bool) {
	p := middleware.GetProfile(c)
	if p == nil {
		h.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return p, true
}

// HandleError converts domain and platform errors to HTTP responses.
// Anything else is logged and answered as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		switch {
		case errors.Is(err, commerce.ErrNotConfigured):
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodePlatformUnavailable, "Commerce platform is not configured")
			return
		case errors.Is(err, context.DeadlineExceeded):
			domainErr = commerce.ErrTimeout
		default:
			logger.L(c.Request.Context()).Error("Unhandled error", zap.Error(err))
			h.InternalError(c, "An unexpected error occurred")
			return
		}
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
}

// HandleResult answers a rejected store result; it reports whether r was OK
func (h *BaseHandler) HandleResult(c *gin.Context, r shared.Result) bool {
	if r.OK() {
		return true
	}
	h.HandleError(c, r.Err())
	return false
}
