package catalog

import (
	"time"

	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// OrderLineItem is one line of a placed order
type OrderLineItem struct {
	ID           string            `json:"id,omitempty"`
	Title        string            `json:"title"`
	VariantTitle string            `json:"variantTitle,omitempty"`
	Quantity     int               `json:"quantity"`
	Total        valueobject.Money `json:"total"`
	ImageURL     string            `json:"imageUrl,omitempty"`
}

// ShippingAddress is where an order ships to
type ShippingAddress struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Order is a placed order, either read by the customer through the
// storefront scope or listed through the admin scope
type Order struct {
	ID                string            `json:"id"`
	Name              string            `json:"name,omitempty"`
	OrderNumber       int               `json:"orderNumber,omitempty"`
	Email             string            `json:"email,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	ProcessedAt       time.Time         `json:"processedAt,omitempty"`
	CancelledAt       *time.Time        `json:"cancelledAt,omitempty"`
	Total             valueobject.Money `json:"total"`
	StatusURL         string            `json:"statusUrl,omitempty"`
	FulfillmentStatus string            `json:"fulfillmentStatus,omitempty"`
	ShippingAddress   *ShippingAddress  `json:"shippingAddress,omitempty"`
	LineItems         []OrderLineItem   `json:"lineItems"`
}

// ItemCount returns the number of units across all lines
func (o Order) ItemCount() int {
	n := 0
	for _, li := range o.LineItems {
		n += li.Quantity
	}
	return n
}

// OrderStatus filters admin order listings
type OrderStatus string

const (
	OrderStatusAny       OrderStatus = "ANY"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusClosed    OrderStatus = "CLOSED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid returns true if the status is a known filter value
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusAny, OrderStatusOpen, OrderStatusClosed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}
