package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")

	h.Success(c, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandlerList(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")

	h.List(c, []int{1, 2, 3}, 3)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.Count)
}

func TestBaseHandlerCreatedAndNoContent(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodPost, "/")
	h.Created(c, gin.H{"id": "1"})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(http.MethodDelete, "/")
	h.NoContent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestBaseHandlerErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")
	c.Set(middleware.RequestIDKey, "req-42")

	h.NotFound(c, "missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.ErrValidation.WithMessage("bad quantity"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"auth required", shared.ErrAuthRequired, http.StatusUnauthorized, dto.ErrCodeAuthRequired},
		{"auth failed", commerce.ErrAuthFailed, http.StatusUnauthorized, dto.ErrCodeAuthFailed},
		{"network", commerce.ErrNetwork, http.StatusBadGateway, dto.ErrCodePlatformUnreachable},
		{"api", commerce.ErrAPI.WithMessage("throttled"), http.StatusBadGateway, dto.ErrCodePlatformError},
		{"timeout", commerce.ErrTimeout, http.StatusGatewayTimeout, dto.ErrCodePlatformTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, dto.ErrCodePlatformTimeout},
		{"wrapped domain error", fmt.Errorf("reading cart: %w", shared.ErrStorageCorruption), http.StatusInternalServerError, dto.ErrCodeStorage},
		{"not configured", commerce.ErrNotConfigured, http.StatusServiceUnavailable, dto.ErrCodePlatformUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext(http.MethodGet, "/")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestBaseHandlerHandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")

	h.HandleError(c, nil)

	assert.Equal(t, 0, w.Body.Len())
}

func TestBaseHandlerHandleResult(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "/")
	assert.True(t, h.HandleResult(c, shared.Ok()))
	assert.Equal(t, 0, w.Body.Len())

	c, w = newTestContext(http.MethodGet, "/")
	assert.False(t, h.HandleResult(c, shared.Rejected(shared.ErrValidation.WithMessage("quantity must be positive"))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "quantity must be positive", resp.Error.Message)
}

func TestBaseHandlerProfileRequired(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")

	p, ok := h.Profile(c)

	assert.Nil(t, p)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
