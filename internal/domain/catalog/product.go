package catalog

import (
	"time"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Image is a product or collection image
type Image struct {
	ID      string `json:"id,omitempty"`
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// SelectedOption is one option (size, colour...) of a variant
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Variant is a purchasable size/colour variant of a product
type Variant struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Price             valueobject.Money `json:"price"`
	AvailableForSale  bool              `json:"availableForSale"`
	InventoryQuantity *int              `json:"inventoryQuantity,omitempty"`
	SelectedOptions   []SelectedOption  `json:"selectedOptions,omitempty"`
}

// CollectionRef is the short form of a collection a product belongs to
type CollectionRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// Product is a catalog entry as returned by the commerce platform
type Product struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Handle      string            `json:"handle"`
	Description string            `json:"description,omitempty"`
	Vendor      string            `json:"vendor,omitempty"`
	ProductType string            `json:"productType,omitempty"`
	MinPrice    valueobject.Money `json:"minPrice"`
	MaxPrice    valueobject.Money `json:"maxPrice"`
	Images      []Image           `json:"images"`
	Variants    []Variant         `json:"variants"`
	Collections []CollectionRef   `json:"collections,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt,omitempty"`
}

// FeaturedImage returns the URL of the first image, or ""
func (p Product) FeaturedImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// Variant looks up a variant by id
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Snapshot captures the fields a cart line item freezes at add time.
// With a known variant id the variant price is used, otherwise the
// product's minimum variant price.
func (p Product) Snapshot(variantID *string) cart.ProductSnapshot {
	price := p.MinPrice.Amount()
	if variantID != nil {
		if v, ok := p.Variant(*variantID); ok {
			price = v.Price.Amount()
		}
	}
	return cart.ProductSnapshot{
		ID:       p.ID,
		Title:    p.Title,
		Price:    price,
		ImageURL: p.FeaturedImage(),
		Handle:   p.Handle,
	}
}

// Page is one page of a cursor-paginated listing
type Page[T any] struct {
	Items       []T    `json:"items"`
	EndCursor   string `json:"endCursor,omitempty"`
	HasNextPage bool   `json:"hasNextPage"`
}

// ReviewsNamespace is the metafield namespace holding product reviews
const ReviewsNamespace = "reviews"

// Metafield is a typed key/value the platform attaches to a product
type Metafield struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
}
