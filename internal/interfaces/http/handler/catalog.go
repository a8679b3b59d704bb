package handler

import (
	"github.com/gin-gonic/gin"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/domain/catalog"
)

// CatalogHandler serves public catalog reads
type CatalogHandler struct {
	BaseHandler
	queries *catalogapp.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(queries *catalogapp.Service) *CatalogHandler {
	return &CatalogHandler{queries: queries}
}

// respond answers a settled query: the data on success, the mapped error otherwise
func respond[T any](h *BaseHandler, c *gin.Context, state catalogapp.State[T], err error) (T, bool) {
	if err == nil {
		err = state.Err
	}
	if err != nil {
		h.HandleError(c, err)
		var zero T
		return zero, false
	}
	return state.Data, true
}

// ListProducts handles GET /products
// List products, optionally searched, filtered by facets and price, and sorted
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q ProductListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleValidation(c, err)
		return
	}
	filter, err := q.Filter()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	var products []catalog.Product
	var ok bool
	if q.Q != "" {
		state, err := h.queries.SearchResults().Fetch(ctx, q.Q)
		products, ok = respond(&h.BaseHandler, c, state, err)
	} else {
		state, err := h.queries.Products().Fetch(ctx, catalogapp.ProductsParams{Limit: q.Limit, AllPages: q.All})
		products, ok = respond(&h.BaseHandler, c, state, err)
	}
	if !ok {
		return
	}

	products = catalog.Apply(products, filter, catalog.ParseSortOrder(q.Sort))
	h.List(c, products, len(products))
}

// GetProduct handles GET /products/:handle
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	state, err := h.queries.Product().Fetch(c.Request.Context(), c.Param("handle"))
	if product, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.Success(c, product)
	}
}

// GetProductReviews lists the review metafields of a product
func (h *CatalogHandler) GetProductReviews(c *gin.Context) {
	state, err := h.queries.ProductReviews().Fetch(c.Request.Context(), c.Param("handle"))
	if reviews, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.List(c, reviews, len(reviews))
	}
}

// ListCollections handles GET /collections
func (h *CatalogHandler) ListCollections(c *gin.Context) {
	var q LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleValidation(c, err)
		return
	}
	state, err := h.queries.Collections().Fetch(c.Request.Context(), q.Limit)
	if collections, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.List(c, collections, len(collections))
	}
}

// GetCollection handles GET /collections/:handle
// One collection with its products
func (h *CatalogHandler) GetCollection(c *gin.Context) {
	var q LimitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleValidation(c, err)
		return
	}
	state, err := h.queries.Collection().Fetch(c.Request.Context(), catalogapp.CollectionParams{
		Handle: c.Param("handle"),
		Limit:  q.Limit,
	})
	if collection, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.Success(c, collection)
	}
}

// GetShop handles GET /shop
func (h *CatalogHandler) GetShop(c *gin.Context) {
	state, err := h.queries.Shop().Fetch(c.Request.Context(), struct{}{})
	if shop, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.Success(c, shop)
	}
}

// Search handles GET /search
// One-shot search by title; blank terms return nothing
func (h *CatalogHandler) Search(c *gin.Context) {
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleValidation(c, err)
		return
	}
	state, err := h.queries.SearchResults().Fetch(c.Request.Context(), q.Q)
	if products, ok := respond(&h.BaseHandler, c, state, err); ok {
		h.List(c, products, len(products))
	}
}
