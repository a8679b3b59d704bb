package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// SortOrder selects how a product listing is ordered
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortTitle     SortOrder = "title"
)

// ParseSortOrder maps a query value to a SortOrder; unknown values
// (including "popular" and "rating", which the platform gives no data
// for) fall back to SortNewest.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortPriceLow:
		return SortPriceLow
	case SortPriceHigh:
		return SortPriceHigh
	case SortTitle:
		return SortTitle
	default:
		return SortNewest
	}
}

// Filter narrows an in-memory product list. Empty fields match everything.
// Within one field values are OR-ed; across fields they are AND-ed.
type Filter struct {
	// Categories match the product type
	Categories []string
	Vendors    []string
	// Tags carry occasion, fabric and colour facets
	Tags     []string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// ActiveCount returns the number of selected facet values
func (f Filter) ActiveCount() int {
	return len(f.Categories) + len(f.Vendors) + len(f.Tags)
}

// Apply filters and sorts products without mutating the input slice
func Apply(products []Product, f Filter, order SortOrder) []Product {
	fold := cases.Fold()
	categories := foldSet(fold, f.Categories)
	vendors := foldSet(fold, f.Vendors)
	tags := foldSet(fold, f.Tags)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if len(categories) > 0 && !categories[fold.String(p.ProductType)] {
			continue
		}
		if len(vendors) > 0 && !vendors[fold.String(p.Vendor)] {
			continue
		}
		if len(tags) > 0 && !anyTag(fold, p.Tags, tags) {
			continue
		}
		price := p.MinPrice.Amount()
		if f.MinPrice != nil && price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, order)
	return out
}

func sortProducts(products []Product, order SortOrder) {
	switch order {
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].MinPrice.Amount().LessThan(products[j].MinPrice.Amount())
		})
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].MinPrice.Amount().GreaterThan(products[j].MinPrice.Amount())
		})
	case SortTitle:
		fold := cases.Fold()
		sort.SliceStable(products, func(i, j int) bool {
			return fold.String(products[i].Title) < fold.String(products[j].Title)
		})
	default:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}

func foldSet(fold cases.Caser, values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			set[fold.String(v)] = true
		}
	}
	return set
}

func anyTag(fold cases.Caser, productTags []string, wanted map[string]bool) bool {
	for _, t := range productTags {
		if wanted[fold.String(strings.TrimSpace(t))] {
			return true
		}
	}
	return false
}
