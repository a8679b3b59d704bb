package handler

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// ProductListQuery selects, filters and sorts a product listing.
// Facet parameters repeat: ?type=Saree&type=Kurta.
type ProductListQuery struct {
	Limit    int      `form:"limit" binding:"omitempty,gte=1,lte=250"`
	Q        string   `form:"q" binding:"max=200"`
	Sort     string   `form:"sort"`
	Types    []string `form:"type"`
	Vendors  []string `form:"vendor"`
	Tags     []string `form:"tag"`
	MinPrice string   `form:"min_price" binding:"omitempty,numeric"`
	MaxPrice string   `form:"max_price" binding:"omitempty,numeric"`
	All      bool     `form:"all"`
}

// Filter builds the in-memory filter for the listing
func (q ProductListQuery) Filter() (catalog.Filter, error) {
	f := catalog.Filter{Categories: q.Types, Vendors: q.Vendors, Tags: q.Tags}
	var err error
	if f.MinPrice, err = parsePrice(q.MinPrice, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parsePrice(q.MaxPrice, "max_price"); err != nil {
		return f, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, shared.ErrValidation.WithMessage("min_price must not exceed max_price")
	}
	return f, nil
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, shared.ErrValidation.WithMessage(field + " must be a non-negative number")
	}
	return &d, nil
}

// LimitQuery bounds a listing
type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=250"`
}

// SearchQuery is a one-shot product search
type SearchQuery struct {
	Q string `form:"q" binding:"max=200"`
}

// SearchFrame is one keystroke sent over the search websocket
type SearchFrame struct {
	Q string `json:"q"`
}

// SearchPush is one result state pushed over the search websocket
type SearchPush struct {
	Products   []catalog.Product `json:"products"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
	Generation uint64            `json:"generation"`
}
