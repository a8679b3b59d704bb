package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// LineItem is one row of the cart. Title, price, image and handle are a
// snapshot taken when the product was first added and are never repriced.
type LineItem struct {
	ProductID  string          `json:"id"`
	VariantKey *string         `json:"variant"`
	Title      string          `json:"title"`
	UnitPrice  decimal.Decimal `json:"price"`
	ImageURL   string          `json:"image"`
	Quantity   int             `json:"quantity"`
	Handle     string          `json:"handle,omitempty"`
}

// Key returns the identity key of the line item
func (li LineItem) Key() Key {
	return NewKey(li.ProductID, li.VariantKey)
}

// Subtotal returns unit price times quantity
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) clone() LineItem {
	out := li
	if li.VariantKey != nil {
		v := *li.VariantKey
		out.VariantKey = &v
	}
	return out
}

func (li LineItem) validate() error {
	if strings.TrimSpace(li.ProductID) == "" {
		return shared.ErrValidation.WithMessage("line item product id is required")
	}
	if li.Quantity < 1 {
		return shared.ErrValidation.WithMessage(fmt.Sprintf("line item %s has quantity %d", li.ProductID, li.Quantity))
	}
	if li.UnitPrice.IsNegative() {
		return shared.ErrValidation.WithMessage(fmt.Sprintf("line item %s has negative price", li.ProductID))
	}
	return nil
}

// Key is the (productId, variantKey) identity of a line item.
// A nil variant key denotes the default/only variant and is distinct from
// an empty-string variant.
type Key struct {
	ProductID  string
	Variant    string
	HasVariant bool
}

// NewKey builds an identity key
func NewKey(productID string, variantKey *string) Key {
	k := Key{ProductID: productID}
	if variantKey != nil {
		k.Variant = *variantKey
		k.HasVariant = true
	}
	return k
}

// String renders the key for logs
func (k Key) String() string {
	if !k.HasVariant {
		return k.ProductID
	}
	return k.ProductID + "#" + k.Variant
}

// ProductSnapshot is what a caller hands to AddItem: the catalog fields
// captured at the instant of adding.
type ProductSnapshot struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	ImageURL string
	Handle   string
}

// Validate checks the snapshot can become a line item
func (p ProductSnapshot) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return shared.ErrValidation.WithMessage("product id is required")
	}
	if p.Price.IsNegative() {
		return shared.ErrValidation.WithMessage("product price cannot be negative")
	}
	return nil
}
