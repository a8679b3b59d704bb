package commerce

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/catalog"
)

// AllProducts follows product cursors until the listing ends or maxPages
// pages were read. Listing stops at the first failing page.
func AllProducts(ctx context.Context, reader CatalogReader, limit, maxPages int) ([]catalog.Product, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	products := make([]catalog.Product, 0, limit)
	req := PageRequest{Limit: limit}
	for page := 0; page < maxPages; page++ {
		result, err := reader.ProductsPage(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("products page %d: %w", page+1, err)
		}
		products = append(products, result.Items...)
		if !result.HasNextPage || result.EndCursor == "" {
			break
		}
		req.After = result.EndCursor
	}
	return products, nil
}
