package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/catalog"
)

// SessionHandler serves the customer session of the authenticated profile
type SessionHandler struct {
	BaseHandler
}

// NewSessionHandler creates a new session handler
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Get handles GET /session
func (h *SessionHandler) Get(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	h.Success(c, toSessionResponse(p.Session.Snapshot()))
}

// Login handles POST /session/login
// Exchange email and password for a customer session
func (h *SessionHandler) Login(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var req LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !h.HandleResult(c, p.Session.Login(c.Request.Context(), req.Email, req.Password)) {
		return
	}
	h.Success(c, toSessionResponse(p.Session.Snapshot()))
}

// Logout handles DELETE /session
func (h *SessionHandler) Logout(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	if !h.HandleResult(c, p.Session.Logout(c.Request.Context())) {
		return
	}
	h.NoContent(c)
}

// Signup handles POST /customers
// Create a customer account, then log it in on this profile
func (h *SessionHandler) Signup(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var req SignupRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if _, err := p.Register(c.Request.Context(), req.toInput()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toSessionResponse(p.Session.Snapshot()))
}

// UpdateCustomer handles PUT /session/customer
// Edit the logged-in customer and refresh the session identity
func (h *SessionHandler) UpdateCustomer(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if _, err := p.UpdateCustomer(c.Request.Context(), req.toInput()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSessionResponse(p.Session.Snapshot()))
}

// Orders handles GET /session/orders
func (h *SessionHandler) Orders(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	orders, err := p.Orders(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if orders == nil {
		orders = []catalog.Order{}
	}
	h.List(c, orders, len(orders))
}

// Order returns one of the customer's orders with its shipping address
func (h *SessionHandler) Order(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	order, err := p.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
