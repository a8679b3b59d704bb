package cart

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeItemAdded       = "CartItemAdded"
	EventTypeItemRemoved     = "CartItemRemoved"
	EventTypeQuantityChanged = "CartQuantityChanged"
	EventTypeCleared         = "CartCleared"
)

// ItemAddedEvent is published when an add creates or increments a line item
type ItemAddedEvent struct {
	shared.BaseDomainEvent
	ProductID  string          `json:"product_id"`
	VariantKey *string         `json:"variant,omitempty"`
	Added      int             `json:"added"`
	Quantity   int             `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
}

// ItemRemovedEvent is published when a line item leaves the cart
type ItemRemovedEvent struct {
	shared.BaseDomainEvent
	ProductID  string          `json:"product_id"`
	VariantKey *string         `json:"variant,omitempty"`
	Total      decimal.Decimal `json:"total"`
}

// QuantityChangedEvent is published when SetQuantity changes a line item
type QuantityChangedEvent struct {
	shared.BaseDomainEvent
	ProductID  string          `json:"product_id"`
	VariantKey *string         `json:"variant,omitempty"`
	Quantity   int             `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
}

// ClearedEvent is published when the cart is emptied
type ClearedEvent struct {
	shared.BaseDomainEvent
	RemovedItems int `json:"removed_items"`
}
