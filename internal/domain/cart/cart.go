package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Cart is the aggregate holding the ordered line items of one profile.
// Items keep insertion order; at most one item exists per identity key and
// every item has quantity >= 1.
type Cart struct {
	profileID string
	items     []LineItem
	events    []shared.DomainEvent
}

// New creates an empty cart for a profile
func New(profileID string) *Cart {
	return &Cart{profileID: profileID, items: make([]LineItem, 0)}
}

// FromItems rebuilds a cart from persisted items. Items that break an
// invariant make the whole payload invalid; callers treat that as storage
// corruption.
func FromItems(profileID string, items []LineItem) (*Cart, error) {
	c := New(profileID)
	seen := make(map[Key]struct{}, len(items))
	for _, item := range items {
		if err := item.validate(); err != nil {
			return nil, shared.ErrStorageCorruption.Wrap(err)
		}
		key := item.Key()
		if _, dup := seen[key]; dup {
			return nil, shared.ErrStorageCorruption.Wrap(fmt.Errorf("duplicate line item %s", key))
		}
		seen[key] = struct{}{}
		c.items = append(c.items, item.clone())
	}
	return c, nil
}

// ProfileID returns the owning profile
func (c *Cart) ProfileID() string {
	return c.profileID
}

// Add appends a new line item or increments the quantity of an existing
// one. An existing item keeps the title, price and image it was first
// added with.
func (c *Cart) Add(product ProductSnapshot, quantity int, variantKey *string) error {
	if quantity < 1 {
		return shared.ErrValidation.WithMessage(fmt.Sprintf("quantity must be a positive integer, got %d", quantity))
	}
	if err := product.Validate(); err != nil {
		return err
	}

	key := NewKey(product.ID, variantKey)
	if i := c.indexOf(key); i >= 0 {
		c.items[i].Quantity += quantity
		c.record(&ItemAddedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemAdded, c.profileID),
			ProductID:       product.ID,
			VariantKey:      copyVariant(variantKey),
			Added:           quantity,
			Quantity:        c.items[i].Quantity,
			Total:           c.Total(),
		})
		return nil
	}

	c.items = append(c.items, LineItem{
		ProductID:  product.ID,
		VariantKey: copyVariant(variantKey),
		Title:      product.Title,
		UnitPrice:  product.Price,
		ImageURL:   product.ImageURL,
		Quantity:   quantity,
		Handle:     product.Handle,
	})
	c.record(&ItemAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemAdded, c.profileID),
		ProductID:       product.ID,
		VariantKey:      copyVariant(variantKey),
		Added:           quantity,
		Quantity:        quantity,
		Total:           c.Total(),
	})
	return nil
}

// Remove deletes the line item with the given identity key.
// It reports whether anything was removed; removing an absent item is not an error.
func (c *Cart) Remove(productID string, variantKey *string) bool {
	i := c.indexOf(NewKey(productID, variantKey))
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.record(&ItemRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemRemoved, c.profileID),
		ProductID:       productID,
		VariantKey:      copyVariant(variantKey),
		Total:           c.Total(),
	})
	return true
}

// SetQuantity sets an absolute quantity. A quantity <= 0 removes the item.
// It reports whether the cart changed.
func (c *Cart) SetQuantity(productID string, quantity int, variantKey *string) bool {
	if quantity <= 0 {
		return c.Remove(productID, variantKey)
	}
	i := c.indexOf(NewKey(productID, variantKey))
	if i < 0 || c.items[i].Quantity == quantity {
		return false
	}
	c.items[i].Quantity = quantity
	c.record(&QuantityChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuantityChanged, c.profileID),
		ProductID:       productID,
		VariantKey:      copyVariant(variantKey),
		Quantity:        quantity,
		Total:           c.Total(),
	})
	return true
}

// Clear empties the cart unconditionally
func (c *Cart) Clear() {
	removed := len(c.items)
	c.items = make([]LineItem, 0)
	c.record(&ClearedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCleared, c.profileID),
		RemovedItems:    removed,
	})
}

// Items returns a copy of the line items in insertion order
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	for i, item := range c.items {
		out[i] = item.clone()
	}
	return out
}

// Item looks up a line item by identity key
func (c *Cart) Item(productID string, variantKey *string) (LineItem, bool) {
	i := c.indexOf(NewKey(productID, variantKey))
	if i < 0 {
		return LineItem{}, false
	}
	return c.items[i].clone(), true
}

// Len returns the number of distinct line items
func (c *Cart) Len() int {
	return len(c.items)
}

// Total returns the sum of unit price times quantity over all items
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count returns the sum of quantities over all items
func (c *Cart) Count() int {
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// PullEvents returns and clears the pending domain events
func (c *Cart) PullEvents() []shared.DomainEvent {
	events := c.events
	c.events = nil
	return events
}

func (c *Cart) record(event shared.DomainEvent) {
	c.events = append(c.events, event)
}

func (c *Cart) indexOf(key Key) int {
	for i, item := range c.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

func copyVariant(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
