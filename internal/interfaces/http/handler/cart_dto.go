package handler

import (
	"github.com/shopspring/decimal"
	cartapp "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/domain/cart"
)

// AddCartItemRequest adds a product by handle. The server reads the product
// to snapshot title, price and image; clients never send prices.
type AddCartItemRequest struct {
	Handle   string  `json:"handle" binding:"required"`
	Variant  *string `json:"variant"`
	Quantity int     `json:"quantity" binding:"omitempty,gte=1"`
}

// UpdateCartItemRequest sets an absolute quantity; zero or less removes the item
type UpdateCartItemRequest struct {
	Quantity *int    `json:"quantity" binding:"required"`
	Variant  *string `json:"variant"`
}

// CartResponse is the cart as the client renders it
type CartResponse struct {
	Items []cart.LineItem `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func toCartResponse(v cartapp.View) CartResponse {
	items := v.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return CartResponse{Items: items, Total: v.Total, Count: v.Count}
}

// CheckoutResponse carries the draft order to pay for
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
}
