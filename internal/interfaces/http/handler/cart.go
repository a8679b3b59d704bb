package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
)

// CartHandler serves the authenticated profile's cart
type CartHandler struct {
	BaseHandler
	catalog commerce.CatalogReader
}

// NewCartHandler creates a new cart handler
func NewCartHandler(catalog commerce.CatalogReader) *CartHandler {
	return &CartHandler{catalog: catalog}
}

// Get handles GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	h.Success(c, toCartResponse(p.Cart.Snapshot()))
}

// AddItem handles POST /cart/items
// Add a product by handle; an existing (product, variant) line is incremented
func (h *CartHandler) AddItem(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	product, err := h.catalog.ProductByHandle(ctx, req.Handle)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if product == nil {
		h.NotFound(c, "product not found")
		return
	}
	if req.Variant != nil {
		if _, found := product.Variant(*req.Variant); !found {
			h.HandleError(c, shared.ErrValidation.WithMessage("unknown variant "+*req.Variant))
			return
		}
	}

	if !h.HandleResult(c, p.Cart.AddItem(ctx, product.Snapshot(req.Variant), req.Quantity, req.Variant)) {
		return
	}
	h.Success(c, toCartResponse(p.Cart.Snapshot()))
}

// UpdateItem handles PUT /cart/items/:productId
// Set an absolute quantity; zero or less removes the line
func (h *CartHandler) UpdateItem(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !h.HandleResult(c, p.Cart.SetQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity, req.Variant)) {
		return
	}
	h.Success(c, toCartResponse(p.Cart.Snapshot()))
}

// RemoveItem handles DELETE /cart/items/:productId
// Remove a line; removing an absent line is not an error
func (h *CartHandler) RemoveItem(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	var variant *string
	if v, present := c.GetQuery("variant"); present {
		variant = &v
	}
	if !h.HandleResult(c, p.Cart.RemoveItem(c.Request.Context(), c.Param("productId"), variant)) {
		return
	}
	h.Success(c, toCartResponse(p.Cart.Snapshot()))
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	if !h.HandleResult(c, p.Cart.Clear(c.Request.Context())) {
		return
	}
	h.Success(c, toCartResponse(p.Cart.Snapshot()))
}

// Checkout handles POST /cart/checkout
// Create a draft order from the cart for the logged-in customer
func (h *CartHandler) Checkout(c *gin.Context) {
	p, ok := h.Profile(c)
	if !ok {
		return
	}
	order, err := p.Checkout(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, CheckoutResponse{OrderID: order.ID, CheckoutURL: order.InvoiceURL})
}
